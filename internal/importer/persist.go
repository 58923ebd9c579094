package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/store"
)

// Pass 6: persistence. Templates and clients are created first so staged
// tasks can reference them, then tasks are written in chunks through the
// duplicate-skipping insert.
func (b *batch) persist(ctx context.Context, s Store, log *logrus.Entry) error {
	templateIDs, err := b.createTemplates(ctx, s, log)
	if err != nil {
		return err
	}
	if err := b.createClients(ctx, s, log); err != nil {
		return err
	}
	if b.d.ForceOverrideOwner {
		if err := b.overrideOwners(ctx, s, log); err != nil {
			return err
		}
	}

	tasks := make([]model.AssignedTask, 0, len(b.staged))
	rowOf := make(map[model.AssignmentKey]int, len(b.staged))
	for _, st := range b.staged {
		task := st.task
		if st.newKey != "" {
			id, ok := templateIDs[st.newKey]
			if !ok {
				b.results[st.row].Failed++
				b.results[st.row].Errors = append(b.results[st.row].Errors,
					fmt.Sprintf("template %q was not created", b.newTemplates[st.newKey].tpl.Name))
				continue
			}
			task.TemplateID = id
		}
		tasks = append(tasks, task)
		rowOf[task.Key()] = st.row
	}

	ins, err := store.InsertInChunks(ctx, s, tasks, b.d.ChunkSize)
	if err != nil {
		return fmt.Errorf("persisting imported tasks: %w", err)
	}
	for _, t := range ins.Inserted {
		b.results[rowOf[t.Key()]].Created++
	}
	for _, t := range ins.Duplicates {
		i := rowOf[t.Key()]
		b.results[i].Skipped++
		b.warn(i, "task for template %d on %s already exists", t.TemplateID, model.FormatDate(t.DueDate))
	}
	for _, f := range ins.Failed {
		i := rowOf[f.Task.Key()]
		b.results[i].Failed++
		b.results[i].Errors = append(b.results[i].Errors, f.Err.Error())
		log.WithFields(logrus.Fields{
			"row":           b.results[i].Line,
			"client_tax_id": f.Task.ClientTaxID,
			"template":      f.Task.TemplateID,
		}).WithError(f.Err).Warn("imported task not written")
	}
	b.inserted = ins.Inserted
	return nil
}

// createTemplates creates the planned templates and returns their IDs by
// name key. A template created concurrently by another import is reused.
func (b *batch) createTemplates(ctx context.Context, s Store, log *logrus.Entry) (map[string]int64, error) {
	ids := make(map[string]int64, len(b.newTemplateOrder))
	for _, key := range b.newTemplateOrder {
		nt := b.newTemplates[key]
		tpl := nt.tpl
		err := s.CreateTemplate(ctx, &tpl)
		if errors.Is(err, store.ErrDuplicate) {
			existing, gerr := s.GetTemplateByKey(ctx, key)
			if gerr != nil {
				return nil, fmt.Errorf("reloading template %q: %w", tpl.Name, gerr)
			}
			log.WithField("template", tpl.Name).Info("template created concurrently; reusing it")
			ids[key] = existing.ID
			continue
		}
		if err != nil {
			log.WithFields(logrus.Fields{"template": tpl.Name, "rows": nt.lines}).WithError(err).Warn("creating template")
			continue
		}
		log.WithFields(logrus.Fields{"template": tpl.Name, "id": tpl.ID, "rows": nt.lines}).Info("template created")
		ids[key] = tpl.ID
		b.templatesCreated = append(b.templatesCreated, tpl)
	}
	return ids, nil
}

func (b *batch) createClients(ctx context.Context, s Store, log *logrus.Entry) error {
	for _, taxID := range b.newClientOrder {
		c := *b.newClients[taxID]
		err := s.CreateClient(ctx, c)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			// Its tasks fail individually on the foreign key.
			log.WithField("client_tax_id", taxID).WithError(err).Warn("creating client")
			continue
		}
		b.clientsCreated = append(b.clientsCreated, taxID)
	}
	return nil
}

// overrideOwners sets an existing client's owner to the first owner its
// rows assert, when that differs from the stored one.
func (b *batch) overrideOwners(ctx context.Context, s Store, log *logrus.Entry) error {
	done := make(map[string]bool)
	for i, r := range b.rows {
		if !r.valid || r.owner == nil || done[r.taxID] {
			continue
		}
		c, ok := b.clients[r.taxID]
		if !ok {
			continue
		}
		done[r.taxID] = true
		if c.OwnerID != nil && *c.OwnerID == *r.owner {
			continue
		}
		if err := s.SetClientOwner(ctx, r.taxID, r.owner); err != nil {
			return fmt.Errorf("overriding owner of client %s: %w", r.taxID, err)
		}
		b.warn(i, "client owner replaced")
		b.ownersUpdated = append(b.ownersUpdated, r.taxID)
		log.WithFields(logrus.Fields{"client_tax_id": r.taxID, "owner": *r.owner}).Info("client owner replaced")
	}
	return nil
}

func encodeSummary(res Result) (string, error) {
	data, err := json.Marshal(struct {
		Rows   []RowResult `json:"rows"`
		Errors []string    `json:"errors,omitempty"`
	}{res.Rows, res.Errors})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
