// Package view holds the per-session read model: the record snapshot a
// signed-in user sees, their number filter and their selection set. It is
// the in-process counterpart of the record list screen and keeps itself
// current by reloading on every change-feed event.
package view

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"assettrack/api/internal/feed"
	"assettrack/api/internal/migration"
	"assettrack/api/internal/patrimony"

	"github.com/rs/zerolog"
)

// Lister is the slice of the record repository the controller reads from.
type Lister interface {
	ListPatrimonies(ctx context.Context) ([]patrimony.Patrimony, error)
}

// RoleChecker resolves whether the session principal holds the admin grant.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) bool
}

// Migrator runs the one-time legacy import for the signed-in user.
type Migrator interface {
	RunOnce(ctx context.Context, userID string) (migration.Result, error)
}

// SelectionState is the tri-state of the select-all control, computed over
// the filtered view.
type SelectionState int

const (
	SelectionNone SelectionState = iota
	SelectionSome
	SelectionAll
)

type Controller struct {
	lister   Lister
	roles    RoleChecker
	migrator Migrator
	hub      *feed.Hub
	log      zerolog.Logger

	mu         sync.Mutex
	userID     string
	admin      bool
	records    []patrimony.Patrimony
	filter     string
	selected   map[string]struct{}
	nextSeq    uint64
	appliedSeq uint64
	sub        *feed.Subscription
	done       chan struct{}
	started    bool
}

func NewController(lister Lister, roles RoleChecker, migrator Migrator, hub *feed.Hub, log zerolog.Logger) *Controller {
	return &Controller{
		lister:   lister,
		roles:    roles,
		migrator: migrator,
		hub:      hub,
		log:      log,
		selected: map[string]struct{}{},
	}
}

// ErrNoSession tells the caller there is no signed-in principal and the
// auth screen should be shown instead of the record list.
var ErrNoSession = errors.New("no active session")

// Start brings the session view up for userID: role resolution, the
// one-time legacy migration, the initial load and the change-feed
// subscription, in that order. A migration failure is reported through the
// returned result error but does not abort the session; the marker stays
// unset so the next start retries.
func (c *Controller) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoSession
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.userID = userID
	c.mu.Unlock()

	admin := c.roles.IsAdmin(ctx, userID)
	c.mu.Lock()
	c.admin = admin
	c.mu.Unlock()

	if c.migrator != nil {
		if res, err := c.migrator.RunOnce(ctx, userID); err != nil {
			c.log.Error().Err(err).Msg("legacy migration failed, will retry next session")
		} else if res.Migrated > 0 {
			c.log.Info().Int("count", res.Migrated).Msg("legacy records migrated")
		}
	}

	if err := c.Reload(ctx); err != nil {
		return err
	}

	if c.hub != nil {
		sub := c.hub.Subscribe()
		done := make(chan struct{})
		c.mu.Lock()
		c.sub = sub
		c.done = done
		c.mu.Unlock()
		go c.watch(sub, done)
	}
	return nil
}

// watch triggers a full reload on every feed event. Events carry no
// payload beyond the action, so a coalesced burst still converges on the
// same snapshot.
func (c *Controller) watch(sub *feed.Subscription, done chan struct{}) {
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
			if err := c.Reload(context.Background()); err != nil {
				c.log.Warn().Err(err).Msg("reload after feed event failed")
			}
		case <-done:
			return
		}
	}
}

// Reload fetches the full record list and replaces the snapshot. Each call
// takes a sequence number before fetching and only the newest completed
// fetch is applied, so a slow early reload cannot overwrite a later one.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.nextSeq++
	seq := c.nextSeq
	c.mu.Unlock()

	items, err := c.lister.ListPatrimonies(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.appliedSeq {
		return nil
	}
	c.appliedSeq = seq
	c.records = items

	// Selection never references a record that is no longer listed.
	listed := make(map[string]struct{}, len(items))
	for _, it := range items {
		listed[it.ID] = struct{}{}
	}
	for id := range c.selected {
		if _, ok := listed[id]; !ok {
			delete(c.selected, id)
		}
	}
	return nil
}

// Records returns the current snapshot, newest first as loaded.
func (c *Controller) Records() []patrimony.Patrimony {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]patrimony.Patrimony, len(c.records))
	copy(out, c.records)
	return out
}

// Visible returns the snapshot narrowed by the number filter. An empty
// filter shows everything; matching is a case-insensitive substring test
// against the record number.
func (c *Controller) Visible() []patrimony.Patrimony {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked()
}

func (c *Controller) visibleLocked() []patrimony.Patrimony {
	needle := strings.ToLower(strings.TrimSpace(c.filter))
	out := make([]patrimony.Patrimony, 0, len(c.records))
	for _, it := range c.records {
		if needle == "" || strings.Contains(strings.ToLower(it.Number), needle) {
			out = append(out, it)
		}
	}
	return out
}

func (c *Controller) SetFilter(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = value
}

func (c *Controller) Filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// ToggleSelect flips the selection of id. Ids that are not in the current
// snapshot are ignored.
func (c *Controller) ToggleSelect(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	listed := false
	for _, it := range c.records {
		if it.ID == id {
			listed = true
			break
		}
	}
	if !listed {
		return
	}
	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
	} else {
		c.selected[id] = struct{}{}
	}
}

// ToggleSelectAll acts on the filtered view: if every visible record is
// already selected it deselects them, otherwise it selects them all.
// Selections outside the current filter are left alone.
func (c *Controller) ToggleSelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	visible := c.visibleLocked()
	if len(visible) == 0 {
		return
	}
	all := true
	for _, it := range visible {
		if _, ok := c.selected[it.ID]; !ok {
			all = false
			break
		}
	}
	for _, it := range visible {
		if all {
			delete(c.selected, it.ID)
		} else {
			c.selected[it.ID] = struct{}{}
		}
	}
}

func (c *Controller) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[id]
	return ok
}

// Selected returns the selected ids in a stable order.
func (c *Controller) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.selected))
	for id := range c.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = map[string]struct{}{}
}

// SelectAllState reports the tri-state of the select-all control for the
// filtered view.
func (c *Controller) SelectAllState() SelectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	visible := c.visibleLocked()
	if len(visible) == 0 {
		return SelectionNone
	}
	selected := 0
	for _, it := range visible {
		if _, ok := c.selected[it.ID]; ok {
			selected++
		}
	}
	switch selected {
	case 0:
		return SelectionNone
	case len(visible):
		return SelectionAll
	default:
		return SelectionSome
	}
}

// Admin reports whether the session principal holds the admin grant.
func (c *Controller) Admin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admin
}

func (c *Controller) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// SignOut ends the session view. Token revocation happens at the API; here
// the feed subscription is released and all per-session state is dropped so
// nothing leaks into the next principal.
func (c *Controller) SignOut() {
	c.Close()
}

// Close tears the session view down: the feed subscription is released and
// all per-session state is dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	sub, done := c.sub, c.done
	c.sub, c.done = nil, nil
	c.started = false
	c.userID = ""
	c.admin = false
	c.records = nil
	c.filter = ""
	c.selected = map[string]struct{}{}
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	if sub != nil {
		sub.Unsubscribe()
	}
}
