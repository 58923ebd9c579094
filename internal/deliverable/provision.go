// Package deliverable provisions storage folders for assigned tasks whose
// template requires one.
//
// Provisioning runs after tasks are persisted. A failure is logged and
// reported for retry; it never affects the task itself.
package deliverable

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nhle/obligations/internal/logging"
	"github.com/nhle/obligations/internal/model"
)

// FolderRequest describes the folder to create for one task.
type FolderRequest struct {
	Task     model.AssignedTask
	Template model.TaskTemplate
	Client   model.Client
}

// Name is the folder title: client, template and due date.
func (r FolderRequest) Name() string {
	return fmt.Sprintf("%s - %s - %s", r.Client.Name, r.Template.Name, model.FormatDate(r.Task.DueDate))
}

// Provisioner creates a folder and returns an opaque reference to it.
type Provisioner interface {
	Provision(ctx context.Context, req FolderRequest) (string, error)
}

// Store is the persistence ProvisionFolders needs.
type Store interface {
	GetTemplate(ctx context.Context, id int64) (*model.TaskTemplate, error)
	GetClient(ctx context.Context, taxID string) (*model.Client, error)
	SetAssignmentFolder(ctx context.Context, id string, folderRef string) error
}

// Failure is a task whose folder could not be provisioned.
type Failure struct {
	Task model.AssignedTask
	Err  error
}

// Report summarizes a provisioning pass.
type Report struct {
	Provisioned int
	Skipped     int
	Failures    []Failure
}

// Retryable returns the tasks worth passing to ProvisionFolders again.
func (r Report) Retryable() []model.AssignedTask {
	out := make([]model.AssignedTask, len(r.Failures))
	for i, f := range r.Failures {
		out[i] = f.Task
	}
	return out
}

// ProvisionFolders creates folders for tasks whose template requires one
// and that have none yet. It stops early only when ctx is done.
func ProvisionFolders(ctx context.Context, s Store, p Provisioner, tasks []model.AssignedTask) (Report, error) {
	log := logging.FromContext(ctx)
	templates := make(map[int64]*model.TaskTemplate)
	clients := make(map[string]*model.Client)

	var rep Report
	fail := func(task model.AssignedTask, err error) {
		rep.Failures = append(rep.Failures, Failure{Task: task, Err: err})
		log.WithFields(logrus.Fields{
			"task":          task.ID,
			"template":      task.TemplateID,
			"client_tax_id": task.ClientTaxID,
		}).WithError(err).Warn("folder provisioning failed")
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if task.FolderRef != nil && *task.FolderRef != "" {
			rep.Skipped++
			continue
		}

		tpl, ok := templates[task.TemplateID]
		if !ok {
			t, err := s.GetTemplate(ctx, task.TemplateID)
			if err != nil {
				fail(task, fmt.Errorf("loading template: %w", err))
				continue
			}
			templates[task.TemplateID], tpl = t, t
		}
		if !tpl.RequiresFolder {
			rep.Skipped++
			continue
		}

		c, ok := clients[task.ClientTaxID]
		if !ok {
			cl, err := s.GetClient(ctx, task.ClientTaxID)
			if err != nil {
				fail(task, fmt.Errorf("loading client: %w", err))
				continue
			}
			clients[task.ClientTaxID], c = cl, cl
		}

		ref, err := p.Provision(ctx, FolderRequest{Task: task, Template: *tpl, Client: *c})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return rep, err
			}
			fail(task, err)
			continue
		}
		if err := s.SetAssignmentFolder(ctx, task.ID, ref); err != nil {
			// The folder exists; a retry creates another one.
			fail(task, fmt.Errorf("recording folder %s: %w", ref, err))
			continue
		}
		rep.Provisioned++
		log.WithFields(logrus.Fields{"task": task.ID, "folder": ref}).Debug("folder provisioned")
	}

	if len(rep.Failures) > 0 {
		log.WithFields(logrus.Fields{
			"provisioned": rep.Provisioned,
			"failed":      len(rep.Failures),
		}).Warn("some folders were not provisioned")
	}
	return rep, nil
}
