package importer

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/normalize"
)

type templateRef struct {
	raw string
	key string
}

// inlineConfig is the template configuration a row carries for templates
// that do not exist yet.
type inlineConfig struct {
	present        bool
	frequency      *model.Frequency
	dayOfMonth     *int
	weekday        *int
	department     *model.Department
	audience       *model.Audience
	requiresFolder *bool
	documentCode   string
	detail         string
	problems       []string

	// Anchor problems only matter for the frequency that uses the anchor.
	dayProblem     string
	weekdayProblem string
}

type parsedRow struct {
	line  int
	valid bool

	taxID      string
	clientName string
	portfolio  string
	ids        []int64
	names      []templateRef
	due        time.Time
	ownerEmail string
	ownerID    string
	cfg        inlineConfig

	// Resolved by later passes.
	owner       *string
	templateIDs []int64
	newKeys     []string
}

type newTemplate struct {
	tpl   model.TaskTemplate
	lines []int
}

type stagedTask struct {
	row    int
	task   model.AssignedTask
	newKey string
}

// batch carries one import through its passes.
type batch struct {
	d       Defaults
	input   []Row
	rows    []parsedRow
	results []RowResult

	// rejected is the batch-level error found by pass 4, built from
	// conflicts and missing.
	rejected  error
	conflicts []Conflict
	missing   []MissingConfig

	clients        map[string]*model.Client
	newClients     map[string]*model.Client
	newClientOrder []string

	agentsByEmail map[string]*model.Agent
	agentsByID    map[string]*model.Agent

	templatesByID    map[int64]*model.TaskTemplate
	templatesByKey   map[string]*model.TaskTemplate
	newTemplates     map[string]*newTemplate
	newTemplateOrder []string

	staged []stagedTask

	clientsCreated   []string
	templatesCreated []model.TaskTemplate
	ownersUpdated    []string
	inserted         []model.AssignedTask
}

func newBatch(rows []Row, d Defaults) *batch {
	return &batch{
		d:              d,
		input:          rows,
		rows:           make([]parsedRow, len(rows)),
		results:        make([]RowResult, len(rows)),
		clients:        make(map[string]*model.Client),
		newClients:     make(map[string]*model.Client),
		agentsByEmail:  make(map[string]*model.Agent),
		agentsByID:     make(map[string]*model.Agent),
		templatesByID:  make(map[int64]*model.TaskTemplate),
		templatesByKey: make(map[string]*model.TaskTemplate),
		newTemplates:   make(map[string]*newTemplate),
	}
}

func (b *batch) warn(i int, format string, args ...any) {
	b.results[i].Warnings = append(b.results[i].Warnings, rowf(format, args...))
}

func (b *batch) fail(i int, format string, args ...any) {
	b.results[i].Errors = append(b.results[i].Errors, rowf(format, args...))
	b.rows[i].valid = false
	b.results[i].Valid = false
}

// Pass 1: row normalization.

func (b *batch) normalizeRows() {
	for i, in := range b.input {
		line := in.Line
		if line <= 0 {
			line = i + 2
		}
		c := cells(in)
		b.rows[i].line = line
		b.results[i].Line = line
		b.rows[i].cfg = parseConfig(c)
		b.rows[i].parse(c, b.d, &b.results[i])
		b.results[i].Valid = b.rows[i].valid
	}
}

func (p *parsedRow) parse(c map[column]string, d Defaults, res *RowResult) {
	var errs []string

	rawTax := c[colTaxID]
	p.taxID = normalize.TaxID(rawTax)
	switch {
	case rawTax == "":
		errs = append(errs, "missing tax id")
	case p.taxID == "" || !normalize.ValidTaxID(p.taxID):
		errs = append(errs, fmt.Sprintf("tax id %q is not valid", rawTax))
	default:
		res.TaxID = p.taxID
	}

	p.clientName = c[colClientName]
	p.portfolio = c[colPortfolio]
	p.ownerEmail = strings.ToLower(c[colOwnerEmail])
	p.ownerID = c[colOwnerID]

	ids, invalid := normalize.SplitTemplateIDs(c[colTemplateIDs])
	p.ids = ids
	for _, tok := range invalid {
		res.Warnings = append(res.Warnings, fmt.Sprintf("template id %q is not a number", tok))
	}
	seen := make(map[string]bool)
	for _, name := range normalize.SplitTemplateNames(c[colTemplateNames]) {
		key := normalize.NameKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		p.names = append(p.names, templateRef{raw: name, key: key})
	}
	res.TemplatesRequested = len(p.ids) + len(p.names) + len(invalid)
	if len(p.ids)+len(p.names) == 0 {
		errs = append(errs, "no template reference")
	}

	if raw := c[colDueDate]; raw != "" {
		due, err := normalize.Date(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("due date %q not recognized", raw))
		} else {
			p.due = due
		}
	} else if d.DueDate != nil {
		p.due = model.DateOnly(*d.DueDate)
	} else {
		errs = append(errs, "missing due date and no default was given")
	}
	if !p.due.IsZero() {
		res.DueDate = model.FormatDate(p.due)
	}

	p.valid = len(errs) == 0
	res.Errors = append(res.Errors, errs...)
}

func parseConfig(c map[column]string) inlineConfig {
	var cfg inlineConfig
	note := func(format string, args ...any) {
		cfg.problems = append(cfg.problems, fmt.Sprintf(format, args...))
	}

	if v, ok := c[colFrequency]; ok {
		cfg.present = true
		if f, err := model.ParseFrequency(v); err == nil {
			cfg.frequency = &f
		} else {
			note("frequency %q not recognized", v)
		}
	}
	if v, ok := c[colDayOfMonth]; ok {
		cfg.present = true
		if n, ok := parseCount(v); ok && model.ValidDayOfMonth(n) {
			cfg.dayOfMonth = &n
		} else {
			cfg.dayProblem = fmt.Sprintf("day of month %q is not between 1 and 31", v)
		}
	}
	if v, ok := c[colWeekday]; ok {
		cfg.present = true
		if n, ok := parseWeekday(v); ok && model.ValidWeekday(n) {
			cfg.weekday = &n
		} else {
			cfg.weekdayProblem = fmt.Sprintf("weekday %q is not between 1 and 7", v)
		}
	}
	if v, ok := c[colDepartment]; ok {
		cfg.present = true
		if dep, err := model.ParseDepartment(v); err == nil {
			cfg.department = &dep
		} else {
			note("department %q not recognized", v)
		}
	}
	if v, ok := c[colAudience]; ok {
		cfg.present = true
		if a, err := model.ParseAudience(v); err == nil {
			cfg.audience = &a
		} else {
			note("audience %q not recognized", v)
		}
	}
	if v, ok := c[colRequiresFolder]; ok {
		cfg.present = true
		if flag, ok := parseBool(v); ok {
			cfg.requiresFolder = &flag
		} else {
			note("folder flag %q not recognized", v)
		}
	}
	if v, ok := c[colDocumentCode]; ok {
		cfg.present = true
		cfg.documentCode = v
	}
	if v, ok := c[colDetail]; ok {
		cfg.present = true
		cfg.detail = v
	}
	return cfg
}

// Pass 2: client and owner resolution.

func (b *batch) resolveClients(ctx context.Context, s Store) error {
	var taxIDs, emails, agentIDs []string
	seen := make(map[string]bool)
	collect := func(list *[]string, kind, v string) {
		if v != "" && !seen[kind+v] {
			seen[kind+v] = true
			*list = append(*list, v)
		}
	}
	for _, r := range b.rows {
		if !r.valid {
			continue
		}
		collect(&taxIDs, "client:", r.taxID)
		collect(&emails, "email:", r.ownerEmail)
		collect(&agentIDs, "agent:", r.ownerID)
	}

	clients := make([]*model.Client, len(taxIDs))
	byEmail := make([]*model.Agent, len(emails))
	byID := make([]*model.Agent, len(agentIDs))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(b.d.Workers)
	for i, taxID := range taxIDs {
		grp.Go(func() error {
			c, err := s.GetClient(gctx, taxID)
			if err != nil && !notFound(err) {
				return fmt.Errorf("resolving client %s: %w", taxID, err)
			}
			clients[i] = c
			return nil
		})
	}
	for i, email := range emails {
		grp.Go(func() error {
			a, err := s.GetAgentByEmail(gctx, email)
			if err != nil && !notFound(err) {
				return fmt.Errorf("resolving owner %s: %w", email, err)
			}
			byEmail[i] = a
			return nil
		})
	}
	for i, id := range agentIDs {
		grp.Go(func() error {
			a, err := s.GetAgent(gctx, id)
			if err != nil && !notFound(err) {
				return fmt.Errorf("resolving owner %s: %w", id, err)
			}
			byID[i] = a
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	for i, taxID := range taxIDs {
		if clients[i] != nil {
			b.clients[taxID] = clients[i]
		}
	}
	for i, email := range emails {
		b.agentsByEmail[email] = byEmail[i]
	}
	for i, id := range agentIDs {
		b.agentsByID[id] = byID[i]
	}

	for i := range b.rows {
		r := &b.rows[i]
		if !r.valid {
			continue
		}
		r.owner = b.rowOwner(i)

		if c, ok := b.clients[r.taxID]; ok {
			b.results[i].ClientStatus = ClientExisting
			if !c.Active {
				b.warn(i, "client %s is inactive", r.taxID)
			}
			continue
		}

		b.results[i].ClientStatus = ClientCreated
		if nc, ok := b.newClients[r.taxID]; ok {
			if nc.OwnerID == nil && r.owner != nil {
				nc.OwnerID = r.owner
			}
			continue
		}
		name := r.clientName
		if name == "" {
			name = "Client " + r.taxID
			b.warn(i, "client name missing; using placeholder %q", name)
		}
		portfolio := r.portfolio
		if portfolio == "" {
			portfolio = b.d.Portfolio
		}
		nc := &model.Client{TaxID: r.taxID, Name: name, Portfolio: portfolio, OwnerID: r.owner, Active: true}
		if err := nc.Validate(); err != nil {
			b.fail(i, "cannot create client: %v", err)
			continue
		}
		b.newClients[r.taxID] = nc
		b.newClientOrder = append(b.newClientOrder, r.taxID)
	}
	return nil
}

// rowOwner resolves the agent a row names explicitly. An id wins over an
// email when both resolve.
func (b *batch) rowOwner(i int) *string {
	r := b.rows[i]
	if r.ownerID != "" {
		if a := b.agentsByID[r.ownerID]; a != nil {
			return &a.ID
		}
		b.warn(i, "owner id %s not found", r.ownerID)
	}
	if r.ownerEmail != "" {
		if a := b.agentsByEmail[r.ownerEmail]; a != nil {
			return &a.ID
		}
		b.warn(i, "owner %s not found", r.ownerEmail)
	}
	return nil
}

// Pass 3: templates referenced by id.

func (b *batch) resolveTemplateIDs(ctx context.Context, s Store) error {
	var ids []int64
	for _, r := range b.rows {
		if !r.valid {
			continue
		}
		for _, id := range r.ids {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}

	found := make([]*model.TaskTemplate, len(ids))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(b.d.Workers)
	for i, id := range ids {
		grp.Go(func() error {
			t, err := s.GetTemplate(gctx, id)
			if err != nil && !notFound(err) {
				return fmt.Errorf("resolving template %d: %w", id, err)
			}
			found[i] = t
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	for i, id := range ids {
		if found[i] != nil {
			b.templatesByID[id] = found[i]
		}
	}

	for i := range b.rows {
		r := &b.rows[i]
		if !r.valid {
			continue
		}
		for _, id := range r.ids {
			t, ok := b.templatesByID[id]
			if !ok {
				b.warn(i, "template id %d does not exist", id)
				continue
			}
			if !t.Active {
				b.warn(i, "template %d (%s) is inactive", id, t.Name)
			}
			r.templateIDs = appendUnique(r.templateIDs, id)
		}
	}
	return nil
}

// Pass 4: templates referenced by name, validated across the whole input
// before any is created. Conflicts and missing configuration are left in
// b.rejected; the returned error is for lookup failures only.

func (b *batch) resolveTemplateNames(ctx context.Context, s Store) error {
	var keys []string
	raw := make(map[string]string)
	for _, r := range b.rows {
		if !r.valid {
			continue
		}
		for _, n := range r.names {
			if _, ok := raw[n.key]; !ok {
				raw[n.key] = n.raw
				keys = append(keys, n.key)
			}
		}
	}

	found := make([]*model.TaskTemplate, len(keys))
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(b.d.Workers)
	for i, key := range keys {
		grp.Go(func() error {
			t, err := s.GetTemplateByKey(gctx, key)
			if err != nil && !notFound(err) {
				return fmt.Errorf("resolving template %q: %w", raw[key], err)
			}
			found[i] = t
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	// Why each rejected name cannot be created, for the rows naming it.
	rejectedKeys := make(map[string][]string)
	for i, key := range keys {
		if found[i] != nil {
			b.templatesByKey[key] = found[i]
			continue
		}
		nt, cs, mc := b.planTemplate(raw[key], key)
		for _, c := range cs {
			b.conflicts = append(b.conflicts, c)
			rejectedKeys[key] = append(rejectedKeys[key],
				fmt.Sprintf("template %q has conflicting %s (%s)", c.Name, c.Field, strings.Join(c.Values, " vs ")))
		}
		if mc != nil {
			b.missing = append(b.missing, *mc)
			rejectedKeys[key] = append(rejectedKeys[key],
				fmt.Sprintf("template %q needs configuration: %s", mc.Name, mc.Reason))
		}
		if nt != nil {
			b.newTemplates[key] = nt
			b.newTemplateOrder = append(b.newTemplateOrder, key)
		}
	}

	for i := range b.rows {
		r := &b.rows[i]
		if !r.valid {
			continue
		}
		for _, n := range r.names {
			for _, reason := range rejectedKeys[n.key] {
				b.fail(i, "%s", reason)
			}
			if t, ok := b.templatesByKey[n.key]; ok {
				if !t.Active {
					b.warn(i, "template %q is inactive", t.Name)
				}
				r.templateIDs = appendUnique(r.templateIDs, t.ID)
				continue
			}
			if _, ok := b.newTemplates[n.key]; ok {
				r.newKeys = appendUnique(r.newKeys, n.key)
				b.results[i].NewTemplates = append(b.results[i].NewTemplates, n.raw)
			}
		}
	}
	b.rejected = batchError(b.conflicts, b.missing)
	return nil
}

// planTemplate gathers the configuration every row gives for a new
// template. It returns the template to create, or the conflicts or missing
// configuration that prevent it.
func (b *batch) planTemplate(name, key string) (*newTemplate, []Conflict, *MissingConfig) {
	var lines []int
	var configured []parsedRow
	for _, r := range b.rows {
		if !r.valid || !slices.ContainsFunc(r.names, func(n templateRef) bool { return n.key == key }) {
			continue
		}
		lines = append(lines, r.line)
		if r.cfg.present {
			configured = append(configured, r)
		}
	}

	var conflicts []Conflict
	check := func(field string, value func(parsedRow) (string, bool)) {
		var values []string
		var rows []int
		for _, r := range configured {
			v, ok := value(r)
			if !ok {
				continue
			}
			rows = append(rows, r.line)
			if !slices.Contains(values, v) {
				values = append(values, v)
			}
		}
		if len(values) > 1 {
			conflicts = append(conflicts, Conflict{Name: name, Field: field, Values: values, Rows: rows})
		}
	}
	check("frequency", func(r parsedRow) (string, bool) {
		if r.cfg.frequency == nil {
			return "", false
		}
		return string(*r.cfg.frequency), true
	})
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	// Only the anchor the agreed frequency uses can conflict.
	var freq model.Frequency
	for _, r := range configured {
		if r.cfg.frequency != nil {
			freq = *r.cfg.frequency
			break
		}
	}
	switch freq {
	case model.FrequencyMonthly:
		check("day of month", func(r parsedRow) (string, bool) {
			if r.cfg.dayOfMonth == nil {
				return "", false
			}
			return fmt.Sprint(*r.cfg.dayOfMonth), true
		})
	case model.FrequencyWeekly:
		check("weekday", func(r parsedRow) (string, bool) {
			if r.cfg.weekday == nil {
				return "", false
			}
			return fmt.Sprint(*r.cfg.weekday), true
		})
	}
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}

	missing := func(reason string) (*newTemplate, []Conflict, *MissingConfig) {
		return nil, nil, &MissingConfig{Name: name, Reason: reason, Rows: lines}
	}
	if len(configured) == 0 {
		return missing("no configuration")
	}

	tpl := model.TaskTemplate{
		Name:       name,
		NameKey:    key,
		Department: b.d.Department,
		Audience:   b.d.Audience,
		Active:     true,
	}
	var problems []string
	var deptSet, audienceSet, folderSet bool
	for _, r := range configured {
		c := r.cfg
		for _, p := range c.problems {
			problems = appendUnique(problems, p)
		}
		if freq == model.FrequencyMonthly && c.dayProblem != "" {
			problems = appendUnique(problems, c.dayProblem)
		}
		if freq == model.FrequencyWeekly && c.weekdayProblem != "" {
			problems = appendUnique(problems, c.weekdayProblem)
		}
		// The first row giving a value wins; disagreements on anything but
		// frequency and anchor are not conflicts.
		if c.frequency != nil && tpl.Frequency == "" {
			tpl.Frequency = *c.frequency
		}
		if c.dayOfMonth != nil && tpl.DayOfMonth == nil {
			tpl.DayOfMonth = c.dayOfMonth
		}
		if c.weekday != nil && tpl.Weekday == nil {
			tpl.Weekday = c.weekday
		}
		if c.department != nil && !deptSet {
			tpl.Department, deptSet = *c.department, true
		}
		if c.audience != nil && !audienceSet {
			tpl.Audience, audienceSet = *c.audience, true
		}
		if c.requiresFolder != nil && !folderSet {
			tpl.RequiresFolder, folderSet = *c.requiresFolder, true
		}
		if c.documentCode != "" && tpl.DocumentCode == "" {
			tpl.DocumentCode = c.documentCode
		}
		if c.detail != "" && tpl.Detail == "" {
			tpl.Detail = c.detail
		}
	}

	switch {
	case len(problems) > 0:
		return missing(strings.Join(problems, ", "))
	case tpl.Frequency == "":
		return missing("frequency missing")
	case tpl.Department == "":
		return missing("department missing")
	}
	// Drop the anchor the frequency does not use.
	switch tpl.Frequency {
	case model.FrequencyMonthly:
		tpl.Weekday = nil
	case model.FrequencyWeekly:
		tpl.DayOfMonth = nil
	case model.FrequencyOneOff:
		tpl.DayOfMonth, tpl.Weekday = nil, nil
	}
	if err := model.CheckAnchor(tpl.Frequency, tpl.DayOfMonth, tpl.Weekday); err != nil {
		switch tpl.Frequency {
		case model.FrequencyMonthly:
			return missing("MONTHLY needs a day of month between 1 and 31")
		case model.FrequencyWeekly:
			return missing("WEEKLY needs a weekday between 1 and 7")
		}
		return missing(err.Error())
	}
	if err := tpl.Validate(); err != nil {
		return missing(err.Error())
	}
	return &newTemplate{tpl: tpl, lines: lines}, nil, nil
}

// Pass 5: assignment staging.

func (b *batch) stageAssignments() {
	type dupKey struct {
		ref   string
		taxID string
		due   string
	}
	seen := make(map[dupKey]int)

	for i := range b.rows {
		r := &b.rows[i]
		res := &b.results[i]
		if !r.valid {
			continue
		}
		res.TemplatesResolved = len(r.templateIDs) + len(r.newKeys)
		res.TemplateIDs = r.templateIDs
		if res.TemplatesResolved == 0 {
			b.fail(i, "no template reference could be resolved")
			continue
		}

		owner, source := r.owner, OwnerFromRow
		if owner == nil {
			owner, source = b.clientOwner(r.taxID), OwnerFromClient
		}
		if owner == nil {
			source = OwnerNone
			b.warn(i, "no owner could be determined")
		}
		res.OwnerSource = source

		stage := func(ref string, templateID int64, newKey string) {
			k := dupKey{ref: ref, taxID: r.taxID, due: model.FormatDate(r.due)}
			if first, ok := seen[k]; ok {
				res.Skipped++
				b.warn(i, "task for %s on %s duplicates row %d", ref, k.due, first)
				return
			}
			seen[k] = r.line
			b.staged = append(b.staged, stagedTask{
				row:    i,
				newKey: newKey,
				task: model.AssignedTask{
					TemplateID:  templateID,
					ClientTaxID: r.taxID,
					OwnerID:     owner,
					DueDate:     r.due,
					Status:      model.StatusPending,
					Origin:      model.OriginImport,
				},
			})
			res.Staged++
		}
		for _, id := range r.templateIDs {
			stage(fmt.Sprintf("template %d", id), id, "")
		}
		for _, key := range r.newKeys {
			stage(fmt.Sprintf("template %q", b.newTemplates[key].tpl.Name), 0, key)
		}
	}
}

func (b *batch) clientOwner(taxID string) *string {
	if c, ok := b.clients[taxID]; ok && c.OwnerID != nil && *c.OwnerID != "" {
		return c.OwnerID
	}
	if c, ok := b.newClients[taxID]; ok && c.OwnerID != nil {
		return c.OwnerID
	}
	return nil
}

func (b *batch) rowResults() []RowResult {
	return slices.Clone(b.results)
}

func (b *batch) invalidCount() int {
	n := 0
	for _, r := range b.results {
		if !r.Valid {
			n++
		}
	}
	return n
}

func appendUnique[T comparable](s []T, v T) []T {
	if slices.Contains(s, v) {
		return s
	}
	return append(s, v)
}
