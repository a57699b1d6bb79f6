package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civicworks/volunteerhub/internal/metrics"
	"github.com/civicworks/volunteerhub/internal/models"
	"github.com/civicworks/volunteerhub/internal/storage"
)

// defaultChannelNames are created for every new project.
var defaultChannelNames = []string{
	"General discussion",
	"Project management",
	"Technical talk",
}

// ProjectService owns the project status state machine: creation,
// publish, finish, staff role management and the derived transitions
// triggered by task stage changes.
type ProjectService struct {
	store storage.Storage
	perms PermissionChecker
	reg   *Registry
	sink  Sink
	log   ChangeLogger
}

// NewProjectService creates a project lifecycle engine.
func NewProjectService(store storage.Storage, perms PermissionChecker, reg *Registry, sink Sink, log ChangeLogger) *ProjectService {
	return &ProjectService{store: store, perms: perms, reg: reg, sink: sink, log: log}
}

// GetProject loads a project or fails with a not-found error.
func (s *ProjectService) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, NotFoundf("project %s not found", projectID)
	}
	return project, nil
}

// CreateProject creates a DRAFT project for the organization with the
// actor as its first owner, the three default tasks, the three default
// discussion channels, a notification to the organization members and
// one to the creator.
func (s *ProjectService) CreateProject(ctx context.Context, actor *models.User, project *models.Project) (*models.Project, error) {
	if err := s.perms.Check(ctx, s.store, actor, ActionOrganizationProjectCreate, project.OrganizationID); err != nil {
		return nil, err
	}

	now := time.Now()
	project.ID = uuid.New().String()
	project.Status = models.ProjectDraft
	project.CreatedAt = now
	project.UpdatedAt = now

	err := s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if err := tx.Projects().Create(ctx, project); err != nil {
			return err
		}
		if err := tx.Projects().AddRole(ctx, &models.ProjectRole{
			ID:        uuid.New().String(),
			ProjectID: project.ID,
			UserID:    actor.ID,
			Role:      models.ProjRoleOwner,
		}); err != nil {
			return err
		}

		if err := tx.Projects().CreateScope(ctx, &models.ProjectScope{
			ID:             uuid.New().String(),
			ProjectID:      project.ID,
			AuthorID:       actor.ID,
			ProjectImpact:  project.ProjectImpact,
			ScopingProcess: project.ScopingProcess,
			AvailableStaff: project.AvailableStaff,
			AvailableData:  project.AvailableData,
			VersionNotes:   "Initial scope.",
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		for _, task := range defaultProjectTasks(project.ID, now) {
			if err := tx.Tasks().Create(ctx, task); err != nil {
				return err
			}
		}
		for _, name := range defaultChannelNames {
			if err := tx.Projects().CreateChannel(ctx, &models.DiscussionChannel{
				ID:        uuid.New().String(),
				ProjectID: project.ID,
				Name:      name,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		memberIDs, err := tx.Organizations().ListMemberIDs(ctx, project.OrganizationID)
		if err != nil {
			return err
		}
		msg := fmt.Sprintf("Project %s was created.", project.Name)
		if err := s.sink.NotifyUsers(ctx, tx, memberIDs, msg,
			models.SeverityInfo, models.SourceOrganization, project.OrganizationID); err != nil {
			return err
		}
		return s.sink.NotifyUser(ctx, tx, actor.ID,
			fmt.Sprintf("You created project %s. It stays in draft until you publish it.", project.Name),
			models.SeverityInfo, models.SourceProject, project.ID)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// defaultProjectTasks builds the three tasks every project starts with.
// All three start closed to volunteers; the owner opens them once the
// project is ready for applications.
func defaultProjectTasks(projectID string, now time.Time) []*models.ProjectTask {
	return []*models.ProjectTask{
		{
			ID:           uuid.New().String(),
			ProjectID:    projectID,
			Name:         "Project scoping",
			ShortSummary: "Describe the problem and produce a project scope.",
			Type:         models.TaskTypeScoping,
			Stage:        models.TaskNotStarted,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           uuid.New().String(),
			ProjectID:    projectID,
			Name:         "Project management",
			ShortSummary: "Coordinate volunteers and keep the project on track.",
			Type:         models.TaskTypeProjectManagement,
			Stage:        models.TaskNotStarted,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           uuid.New().String(),
			ProjectID:    projectID,
			Name:         "Domain work",
			ShortSummary: "The data science work itself.",
			Type:         models.TaskTypeDomainWork,
			Stage:        models.TaskNotStarted,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

// Publish moves a DRAFT project to NEW and stamps its actual start date.
// The member notification and the status log entry are appended even when
// the project is already published.
func (s *ProjectService) Publish(ctx context.Context, actor *models.User, projectID string) (*models.Project, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectPublish, projectID); err != nil {
		return nil, err
	}

	err = s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if project.Status == models.ProjectDraft {
			now := time.Now()
			s.recordTransition(project, models.ProjectNew)
			project.ActualStartDate = &now
			project.UpdatedAt = now
			if err := tx.Projects().Update(ctx, project); err != nil {
				return err
			}
		}
		if err := s.log.AppendLog(ctx, tx, project.ID, actor.ID,
			models.LogAdd, models.LogSourceStatus, project.ID,
			fmt.Sprintf("Project %s was published.", project.Name)); err != nil {
			return err
		}
		memberIDs, err := s.reg.MemberIDs(ctx, tx, project.ID)
		if err != nil {
			return err
		}
		return s.sink.NotifyUsers(ctx, tx, memberIDs,
			fmt.Sprintf("Project %s was published and is now visible to volunteers.", project.Name),
			models.SeverityWarning, models.SourceProject, project.ID)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// Finish moves a WAITING_REVIEW project to COMPLETED and stamps its
// actual end date. Like Publish, the broadcast and log entry are
// unconditional.
func (s *ProjectService) Finish(ctx context.Context, actor *models.User, projectID string) (*models.Project, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectApproveAsCompleted, projectID); err != nil {
		return nil, err
	}

	err = s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if project.Status == models.ProjectWaitingReview {
			now := time.Now()
			s.recordTransition(project, models.ProjectCompleted)
			project.ActualEndDate = &now
			project.UpdatedAt = now
			if err := tx.Projects().Update(ctx, project); err != nil {
				return err
			}
		}
		if err := s.log.AppendLog(ctx, tx, project.ID, actor.ID,
			models.LogComplete, models.LogSourceStatus, project.ID,
			fmt.Sprintf("Project %s was completed.", project.Name)); err != nil {
			return err
		}
		audience, err := s.reg.NotificationEligibleIDs(ctx, tx, project.ID)
		if err != nil {
			return err
		}
		return s.sink.NotifyUsers(ctx, tx, audience,
			fmt.Sprintf("Project %s finished. Thank you for participating!", project.Name),
			models.SeverityInfo, models.SourceProject, project.ID)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateInformation edits the project's descriptive fields and logs the
// edit. Status and dates are not touched here.
func (s *ProjectService) UpdateInformation(ctx context.Context, actor *models.User, project *models.Project) error {
	current, err := s.GetProject(ctx, project.ID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectInformationEdit, project.ID); err != nil {
		return err
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		current.Name = project.Name
		current.ShortSummary = project.ShortSummary
		current.Description = project.Description
		current.EstimatedStartDate = project.EstimatedStartDate
		current.EstimatedEndDate = project.EstimatedEndDate
		current.UpdatedAt = time.Now()
		if err := tx.Projects().Update(ctx, current); err != nil {
			return err
		}
		return s.log.AppendLog(ctx, tx, current.ID, actor.ID,
			models.LogEdit, models.LogSourceInformation, current.ID,
			fmt.Sprintf("Project %s information was edited.", current.Name))
	})
}

// UpdateScope appends a new scope version, copies it onto the project and
// notifies the officials.
func (s *ProjectService) UpdateScope(ctx context.Context, actor *models.User, projectID string, scope *models.ProjectScope) error {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectScopeEdit, projectID); err != nil {
		return err
	}

	scope.ID = uuid.New().String()
	scope.ProjectID = projectID
	scope.AuthorID = actor.ID
	scope.CreatedAt = time.Now()

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if err := tx.Projects().CreateScope(ctx, scope); err != nil {
			return err
		}
		project.ProjectImpact = scope.ProjectImpact
		project.ScopingProcess = scope.ScopingProcess
		project.AvailableStaff = scope.AvailableStaff
		project.AvailableData = scope.AvailableData
		project.UpdatedAt = scope.CreatedAt
		if err := tx.Projects().Update(ctx, project); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogEdit, models.LogSourceScope, scope.ID,
			fmt.Sprintf("Project %s scope was updated.", project.Name)); err != nil {
			return err
		}
		officials, err := s.reg.OfficialIDs(ctx, tx, projectID)
		if err != nil {
			return err
		}
		return s.sink.NotifyUsers(ctx, tx, officials,
			fmt.Sprintf("The scope of project %s was updated.", project.Name),
			models.SeverityInfo, models.SourceProject, projectID)
	})
}

// AddStaffRole adds an OWNER or STAFF role to the project.
func (s *ProjectService) AddStaffRole(ctx context.Context, actor *models.User, role *models.ProjectRole) error {
	project, err := s.GetProject(ctx, role.ProjectID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectStaffEdit, role.ProjectID); err != nil {
		return err
	}
	role.ID = uuid.New().String()

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		if err := tx.Projects().AddRole(ctx, role); err != nil {
			if isDuplicate(err) {
				return Duplicatef("user already holds a staff role on project %s", project.Name)
			}
			return err
		}
		if err := s.log.AppendLog(ctx, tx, role.ProjectID, actor.ID,
			models.LogAdd, models.LogSourceStaff, role.ID,
			fmt.Sprintf("A %s role was added to project %s.", role.Role, project.Name)); err != nil {
			return err
		}
		return s.sink.NotifyUser(ctx, tx, role.UserID,
			fmt.Sprintf("You were added to project %s as %s.", project.Name, role.Role),
			models.SeverityInfo, models.SourceProject, project.ID)
	})
}

// SaveStaffRole changes a staff role. Demoting the last owner fails with
// a last-owner error.
func (s *ProjectService) SaveStaffRole(ctx context.Context, actor *models.User, role *models.ProjectRole) error {
	project, err := s.GetProject(ctx, role.ProjectID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectStaffEdit, role.ProjectID); err != nil {
		return err
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		current, err := tx.Projects().GetRole(ctx, role.ProjectID, role.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return NotFoundf("staff role %s not found on project %s", role.ID, role.ProjectID)
		}
		if current.Role == models.ProjRoleOwner && role.Role != models.ProjRoleOwner {
			owners, err := tx.Projects().CountOwners(ctx, role.ProjectID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return LastOwnerf("project %s must keep at least one owner", project.Name)
			}
		}
		current.Role = role.Role
		if err := tx.Projects().UpdateRole(ctx, current); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, role.ProjectID, actor.ID,
			models.LogEdit, models.LogSourceStaff, role.ID,
			fmt.Sprintf("A staff role on project %s was changed to %s.", project.Name, role.Role)); err != nil {
			return err
		}
		return s.sink.NotifyUser(ctx, tx, current.UserID,
			fmt.Sprintf("Your role on project %s is now %s.", project.Name, role.Role),
			models.SeverityInfo, models.SourceProject, project.ID)
	})
}

// DeleteStaffRole removes a staff role. Removing the last owner fails
// with a last-owner error.
func (s *ProjectService) DeleteStaffRole(ctx context.Context, actor *models.User, projectID, roleID string) error {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, s.store, actor, ActionProjectStaffRemove, projectID); err != nil {
		return err
	}

	return s.store.InTransaction(ctx, func(tx storage.Storage) error {
		role, err := tx.Projects().GetRole(ctx, projectID, roleID)
		if err != nil {
			return err
		}
		if role == nil {
			return NotFoundf("staff role %s not found on project %s", roleID, projectID)
		}
		if role.Role == models.ProjRoleOwner {
			owners, err := tx.Projects().CountOwners(ctx, projectID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return LastOwnerf("project %s must keep at least one owner", project.Name)
			}
		}
		if err := tx.Projects().DeleteRole(ctx, projectID, roleID); err != nil {
			return err
		}
		if err := s.log.AppendLog(ctx, tx, projectID, actor.ID,
			models.LogRemove, models.LogSourceStaff, roleID,
			fmt.Sprintf("A staff member was removed from project %s.", project.Name)); err != nil {
			return err
		}
		return s.sink.NotifyUser(ctx, tx, role.UserID,
			fmt.Sprintf("You were removed from project %s.", project.Name),
			models.SeverityWarning, models.SourceProject, project.ID)
	})
}

// ToggleFollower follows or unfollows the project for the actor and
// reports whether the actor is following afterwards.
func (s *ProjectService) ToggleFollower(ctx context.Context, actor *models.User, projectID string) (bool, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return false, err
	}
	if actor == nil {
		return false, PermissionDeniedf("not authenticated")
	}

	var following bool
	err := s.store.InTransaction(ctx, func(tx storage.Storage) error {
		isFollower, err := tx.Projects().IsFollower(ctx, projectID, actor.ID)
		if err != nil {
			return err
		}
		if isFollower {
			following = false
			return tx.Projects().RemoveFollower(ctx, projectID, actor.ID)
		}
		following = true
		return tx.Projects().AddFollower(ctx, projectID, actor.ID)
	})
	if err != nil {
		return false, err
	}
	return following, nil
}

// transitionStatus applies a derived project status change inside the
// caller's transaction: persist, log, broadcast, in that order.
func (s *ProjectService) transitionStatus(ctx context.Context, tx storage.Storage, actorID string,
	project *models.Project, to models.ProjectStatus, description string) error {
	s.recordTransition(project, to)
	project.UpdatedAt = time.Now()
	if err := tx.Projects().Update(ctx, project); err != nil {
		return err
	}
	if err := s.log.AppendLog(ctx, tx, project.ID, actorID,
		models.LogEdit, models.LogSourceStatus, project.ID, description); err != nil {
		return err
	}
	audience, err := s.reg.NotificationEligibleIDs(ctx, tx, project.ID)
	if err != nil {
		return err
	}
	return s.sink.NotifyUsers(ctx, tx, audience, description,
		models.SeverityInfo, models.SourceProject, project.ID)
}

// recordTransition sets the new status and counts the edge.
func (s *ProjectService) recordTransition(project *models.Project, to models.ProjectStatus) {
	metrics.ProjectTransitionsTotal.WithLabelValues(string(project.Status), string(to)).Inc()
	project.Status = to
}

// applyTaskStageRules evaluates the derived project transitions after a
// task's stage changed, inside the caller's transaction.
func (s *ProjectService) applyTaskStageRules(ctx context.Context, tx storage.Storage, actorID string, task *models.ProjectTask) error {
	project, err := tx.Projects().GetByID(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	if project == nil {
		return NotFoundf("project %s not found", task.ProjectID)
	}

	switch {
	// Scoping approved: open domain work to volunteers, start staffing.
	case task.Type == models.TaskTypeScoping &&
		task.Stage == models.TaskCompleted &&
		project.Status == models.ProjectWaitingDesignApproval:
		domainTasks, err := tx.Tasks().ListByTypeAndStage(ctx, task.ProjectID,
			models.TaskTypeDomainWork, models.TaskNotStarted)
		if err != nil {
			return err
		}
		for _, dt := range domainTasks {
			dt.AcceptingVolunteers = true
			dt.UpdatedAt = time.Now()
			if err := tx.Tasks().Update(ctx, dt); err != nil {
				return err
			}
		}
		return s.transitionStatus(ctx, tx, actorID, project, models.ProjectWaitingStaff,
			fmt.Sprintf("The scope of project %s was approved. Volunteer staffing has started.", project.Name))

	// Scoping submitted for QA while the project is in design.
	case task.Type == models.TaskTypeScoping &&
		task.Stage == models.TaskWaitingReview &&
		project.Status == models.ProjectDesign:
		return s.transitionStatus(ctx, tx, actorID, project, models.ProjectWaitingDesignApproval,
			fmt.Sprintf("The scope of project %s is awaiting approval.", project.Name))

	// Domain work finished: final QA when nothing remains, otherwise a
	// warning to the officials when only non-domain tasks stay open.
	case task.Type == models.TaskTypeDomainWork && task.Stage == models.TaskCompleted:
		anyOpen, err := tx.Tasks().ExistsNonCompleted(ctx, task.ProjectID, "")
		if err != nil {
			return err
		}
		if !anyOpen {
			return s.transitionStatus(ctx, tx, actorID, project, models.ProjectWaitingReview,
				fmt.Sprintf("All the work of project %s was completed. The project is in final QA.", project.Name))
		}
		domainOpen, err := tx.Tasks().ExistsNonCompleted(ctx, task.ProjectID, models.TaskTypeDomainWork)
		if err != nil {
			return err
		}
		if !domainOpen {
			officials, err := s.reg.OfficialIDs(ctx, tx, task.ProjectID)
			if err != nil {
				return err
			}
			return s.sink.NotifyUsers(ctx, tx, officials,
				fmt.Sprintf("All the domain work of project %s finished but other tasks remain open.", project.Name),
				models.SeverityWarning, models.SourceProject, project.ID)
		}
	}
	return nil
}

// onVolunteerAccepted evaluates the project transitions triggered by an
// accepted applicant joining a task.
func (s *ProjectService) onVolunteerAccepted(ctx context.Context, tx storage.Storage, actorID string, task *models.ProjectTask) error {
	project, err := tx.Projects().GetByID(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	if project == nil {
		return NotFoundf("project %s not found", task.ProjectID)
	}

	switch {
	case task.Type == models.TaskTypeScoping && project.Status == models.ProjectNew:
		return s.transitionStatus(ctx, tx, actorID, project, models.ProjectDesign,
			fmt.Sprintf("Scoping of project %s has started.", project.Name))
	case task.Type == models.TaskTypeDomainWork && project.Status == models.ProjectWaitingStaff:
		return s.transitionStatus(ctx, tx, actorID, project, models.ProjectInProgress,
			fmt.Sprintf("Work on project %s has started.", project.Name))
	}
	return nil
}

// onScopingReviewRejected reverts the project to DESIGN when a scoping
// review is rejected while the scope awaits approval.
func (s *ProjectService) onScopingReviewRejected(ctx context.Context, tx storage.Storage, actorID string, task *models.ProjectTask) error {
	if task.Type != models.TaskTypeScoping {
		return nil
	}
	project, err := tx.Projects().GetByID(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	if project == nil {
		return NotFoundf("project %s not found", task.ProjectID)
	}
	if project.Status != models.ProjectWaitingDesignApproval {
		return nil
	}
	return s.transitionStatus(ctx, tx, actorID, project, models.ProjectDesign,
		fmt.Sprintf("The scope of project %s needs more design work.", project.Name))
}
