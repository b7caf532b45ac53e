// Package scope holds the live missions of one owner: the shared world
// (mainline missions) or a single participant (sideline missions).
package scope

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tilequest/missionengine/internal/broadcast"
	"github.com/tilequest/missionengine/internal/cache"
	"github.com/tilequest/missionengine/internal/mission"
	"github.com/tilequest/missionengine/internal/persistence"
	"github.com/tilequest/missionengine/internal/queue"
	"github.com/tilequest/missionengine/internal/registry"
	"github.com/tilequest/missionengine/pkg/core"
)

// Rewarder grants a completed mission's reward to one participant.
type Rewarder interface {
	ApplyReward(participant core.ParticipantID, missionID int, reward core.Reward)
}

// Presenter shows lifecycle notifications to one participant.
type Presenter interface {
	Present(participant core.ParticipantID, n core.Notification)
}

// Inventory lists what a participant currently holds.
type Inventory interface {
	HeldItems(participant core.ParticipantID) []core.HeldItem
}

// Env carries the collaborators shared by every scope of a world. Nil
// collaborators are skipped.
type Env struct {
	Logger    *slog.Logger
	Rewarder  Rewarder
	Presenter Presenter
	Inventory Inventory

	// Observe receives every notification exactly once.
	Observe func(core.Notification)

	Now func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

// ApplyReport summarizes a deferred load.
type ApplyReport struct {
	Applied  bool
	Restored int
	Skipped  int
	Dropped  int
	Repairs  int
	Settled  int
}

// base is the machinery shared by World and Participant. It implements
// mission.Host and persistence.Target.
type base struct {
	name     string
	mainline bool
	env      Env
	logger   *slog.Logger

	defs       *registry.Definitions
	reg        *registry.Registry
	bus        *broadcast.Broadcaster
	completed  *cache.IDSet
	notified   *cache.IDSet
	successors *queue.Pending[int]
	persist    *persistence.Coordinator

	owner       core.ParticipantID
	recipients  func() []core.ParticipantID
	ledgerFor   func(core.ParticipantID) broadcast.Ledger
	contributed func() []string
	restoreMore func(persistence.Result)
	resetMore   func()
	// unclaimed takes the reward of a mission completed with no recipient
	unclaimed func(*mission.Mission)
}

func newBase(name string, mainline bool, owner core.ParticipantID, defs *registry.Definitions, env Env) (*base, error) {
	env = env.withDefaults()
	bus, err := broadcast.New(name, env.Logger)
	if err != nil {
		return nil, fmt.Errorf("scope %s: %w", name, err)
	}

	b := &base{
		name:       name,
		mainline:   mainline,
		env:        env,
		logger:     env.Logger.With("scope", name),
		defs:       defs,
		bus:        bus,
		completed:  cache.NewIDSet(),
		notified:   cache.NewIDSet(),
		successors: queue.NewPending[int](),
		persist:    persistence.NewCoordinator(),
		owner:      owner,
	}
	b.reg = registry.New(defs, func(m *mission.Mission) { m.Attach(b, owner) })
	return b, nil
}

// owns reports whether missions with this id live in this scope.
func (b *base) owns(id int) bool {
	def, ok := b.defs.Lookup(id)
	return ok && def.Mainline == b.mainline
}

// Name identifies the scope in logs ("world" or the participant id).
func (b *base) Name() string {
	return b.name
}

// Init instantiates every definition owned by the scope and unlocks the
// ones marked startUnlocked.
func (b *base) Init() {
	for _, id := range b.defs.IDs() {
		if !b.owns(id) {
			continue
		}
		m, ok := b.reg.GetOrCreate(id)
		if !ok {
			continue
		}
		def, _ := b.defs.Lookup(id)
		if def.StartUnlocked && m.Availability == core.AvailabilityLocked {
			_ = m.UnlockQuietly()
		}
	}
}

// Instantiate implements persistence.Target.
func (b *base) Instantiate(id int) (*mission.Mission, bool) {
	if !b.owns(id) {
		return nil, false
	}
	return b.reg.GetOrCreate(id)
}

// Get returns the scope's live instance for id, creating it on first use.
func (b *base) Get(id int) (*mission.Mission, bool) {
	if !b.owns(id) {
		return nil, false
	}
	return b.reg.GetOrCreate(id)
}

// Missions returns the live instances ordered by id.
func (b *base) Missions() []*mission.Mission {
	return b.reg.All()
}

// Active returns the missions in progress.
func (b *base) Active() []*mission.Mission {
	return b.filter((*mission.Mission).IsActive)
}

// Available returns the unlocked missions not yet started.
func (b *base) Available() []*mission.Mission {
	return b.filter((*mission.Mission).IsAvailable)
}

// CompletedMissions returns the finished missions.
func (b *base) CompletedMissions() []*mission.Mission {
	return b.filter((*mission.Mission).IsCompleted)
}

// CompletedIDs returns the ids recorded as completed, ascending.
func (b *base) CompletedIDs() []int {
	return b.completed.Slice()
}

// HasAvailableFor reports whether provider offers a mission that can be started.
func (b *base) HasAvailableFor(provider core.ProviderID) bool {
	for _, m := range b.Available() {
		if m.Provider == provider {
			return true
		}
	}
	return false
}

func (b *base) filter(keep func(*mission.Mission) bool) []*mission.Mission {
	var out []*mission.Mission
	for _, m := range b.reg.All() {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (b *base) require(id int) (*mission.Mission, error) {
	m, ok := b.Get(id)
	if !ok {
		return nil, fmt.Errorf("mission %d in %s: %w", id, b.name, registry.ErrNotFound)
	}
	return m, nil
}

// Unlock makes mission id available.
func (b *base) Unlock(id int, announce bool) error {
	m, err := b.require(id)
	if err != nil {
		return err
	}
	if announce {
		return m.Unlock()
	}
	return m.UnlockQuietly()
}

// Start activates mission id.
func (b *base) Start(id int) error {
	m, err := b.require(id)
	if err != nil {
		return err
	}
	return m.Start()
}

// Complete finishes mission id, starting it first if it is only unlocked.
func (b *base) Complete(id int) error {
	m, err := b.require(id)
	if err != nil {
		return err
	}
	if m.IsAvailable() {
		if err := m.Start(); err != nil {
			return err
		}
	}
	if m.IsCompleted() {
		return nil
	}
	return m.Finish()
}

// Reset returns mission id to Inactive. A completed mission stays unlocked
// and leaves the completed list.
func (b *base) Reset(id int) error {
	m, err := b.require(id)
	if err != nil {
		return err
	}
	wasCompleted := m.IsCompleted()
	m.Reset()
	if wasCompleted {
		m.Availability = core.AvailabilityUnlocked
		m.Unlocked = true
		b.completed.Remove(id)
		b.persist.Touch()
	}
	b.notify(m, core.NotifyReset, "")
	return nil
}

// AssignProvider changes who offers mission id. Assignments are not part
// of the save tree; hosts re-apply them after load.
func (b *base) AssignProvider(id int, provider core.ProviderID) error {
	m, err := b.require(id)
	if err != nil {
		return err
	}
	if m.Provider == provider {
		return nil
	}
	m.Provider = provider
	b.notify(m, core.NotifyProviderAssigned, "")
	return nil
}

// Broadcast delivers ev to the scope's active missions using the ledger of
// the participant that caused it.
func (b *base) Broadcast(ev core.Event) int {
	return b.bus.Broadcast(ev, b.ledgerFor(ev.Source()))
}

// TakeSuccessors returns completed mission ids waiting for a successor check.
func (b *base) TakeSuccessors() []int {
	return b.successors.Drain()
}

// DeferSuccessor queues id for another successor check on the next tick.
func (b *base) DeferSuccessor(id int) {
	b.successors.Push(id)
}

// Capture stores raw save data for a later Apply.
func (b *base) Capture(tree core.Tree) {
	b.persist.Capture(tree)
}

// Pending reports whether captured save data waits to be applied.
func (b *base) Pending() bool {
	return b.persist.Pending()
}

// Apply converts captured save data into live state. It runs once per
// capture. If the restore itself fails the scope is reset to a clean,
// re-initialized state and the error is returned.
func (b *base) Apply() (ApplyReport, error) {
	tree, ok := b.persist.Take()
	if !ok {
		return ApplyReport{}, nil
	}

	res, err := persistence.Restore(tree, b, b.logger)
	if err != nil {
		b.logger.Error("restoring missions failed, starting clean", "error", err)
		b.clean()
		return ApplyReport{}, err
	}

	b.completed.Restore(res.Completed)
	b.notified.Restore(res.Notified)
	if b.restoreMore != nil {
		b.restoreMore(res)
	}
	b.persist.ClearDirty()

	report := ApplyReport{
		Applied:  true,
		Restored: len(res.Restored),
		Skipped:  res.Skipped,
		Dropped:  res.Dropped,
		Repairs:  res.Repairs,
	}
	for _, m := range res.Restored {
		m.Resume()
		if m.Settle() {
			report.Settled++
		}
	}

	// completed missions get another successor check; the engine skips
	// successors that are already unlocked
	for _, id := range res.Completed {
		if m, ok := b.reg.Get(id); ok && m.HasSuccessor() {
			b.successors.Push(id)
		}
	}

	if report.Skipped+report.Dropped+report.Repairs > 0 {
		b.persist.Touch()
	}
	b.logger.Info("missions restored",
		"restored", report.Restored,
		"completed", len(res.Completed),
		"skipped", report.Skipped,
		"dropped", report.Dropped,
		"repairs", report.Repairs)
	return report, nil
}

// Snapshot returns the tree to persist. Captured data that was never
// applied is returned unchanged so a save before Apply does not lose it.
func (b *base) Snapshot() core.Tree {
	if tree, ok := b.persist.PendingTree(); ok {
		return tree
	}
	var contributed []string
	if b.contributed != nil {
		contributed = b.contributed()
	}
	return persistence.Snapshot(b.reg.All(), b.completed.Slice(), b.notified.Slice(), contributed)
}

// Dirty reports whether anything changed since the last MarkSaved.
func (b *base) Dirty() bool {
	return b.persist.Dirty()
}

// MarkSaved clears the dirty state after a successful save.
func (b *base) MarkSaved() {
	b.persist.ClearDirty()
}

// Clear drops every live mission and all scope state.
func (b *base) Clear() {
	b.bus.Clear()
	b.reg.ClearCache()
	b.completed.Reset()
	b.notified.Reset()
	b.successors.Clear()
	b.persist.Reset()
	if b.resetMore != nil {
		b.resetMore()
	}
}

func (b *base) clean() {
	b.Clear()
	b.Init()
}

// mission.Host

func (b *base) Subscribe(m *mission.Mission) {
	b.bus.Subscribe(m)
}

func (b *base) Unsubscribe(m *mission.Mission) {
	b.bus.Unsubscribe(m)
}

func (b *base) Unlocked(m *mission.Mission, announce bool) {
	if !announce {
		return
	}
	b.notify(m, core.NotifyUnlocked, "")
	if !m.Mainline && b.notified.Add(m.ID) {
		b.persist.Touch()
		b.notify(m, core.NotifyProviderOffer, "")
	}
}

func (b *base) Started(m *mission.Mission) {
	b.logger.Info("mission started", "mission", m.ID, "participant", m.Owner)
	b.notify(m, core.NotifyStarted, "")
	b.scanInventory(m)
}

func (b *base) ObjectiveCompleted(m *mission.Mission, o *mission.Objective) {
	b.notify(m, core.NotifyObjectiveCompleted, o.Description)
}

func (b *base) SetAdvanced(m *mission.Mission) {
	b.notify(m, core.NotifySetAdvanced, "")
	b.scanInventory(m)
}

func (b *base) Completed(m *mission.Mission) {
	b.logger.Info("mission completed", "mission", m.ID, "participant", m.Owner)
	if b.completed.Add(m.ID) {
		b.persist.Touch()
	}
	b.reward(m)
	b.notify(m, core.NotifyCompleted, "")
	if m.HasSuccessor() {
		b.successors.Push(m.ID)
	}
}

func (b *base) Changed(m *mission.Mission) {
	b.persist.MarkDirty(m.ID)
}

// scanInventory feeds the holdings of every recipient into m as passive
// item events the first time its current set needs them.
func (b *base) scanInventory(m *mission.Mission) {
	if b.env.Inventory == nil || !m.NeedsInventoryCheck() {
		return
	}
	// flag first: a set advance during the scan scans the next set itself
	m.MarkInventoryChecked()
	for _, p := range b.recipients() {
		if !b.feedHoldings(m, p) {
			return
		}
	}
}

// feedHoldings delivers p's held items to m's current set. It reports
// false once m left that set.
func (b *base) feedHoldings(m *mission.Mission, p core.ParticipantID) bool {
	set := m.CurrentSet()
	ledger := b.ledgerFor(p)
	for _, item := range b.env.Inventory.HeldItems(p) {
		if !m.IsActive() || m.CurrentSet() != set {
			return false
		}
		ev := core.ItemAcquired{
			Base:    core.Base{Participant: p, Amount: item.Quantity},
			Item:    item.Item,
			Token:   item.Token,
			Passive: true,
		}
		b.bus.DeliverTo(m, ev, ledger)
	}
	return m.IsActive() && m.CurrentSet() == set
}

func (b *base) reward(m *mission.Mission) {
	if b.env.Rewarder == nil {
		return
	}
	recipients := b.recipients()
	if len(recipients) == 0 && b.unclaimed != nil {
		b.unclaimed(m)
		return
	}
	for _, p := range recipients {
		b.env.Rewarder.ApplyReward(p, m.ID, m.Reward)
	}
}

func (b *base) notification(m *mission.Mission, kind core.NotificationKind, objective string) core.Notification {
	return core.Notification{
		Kind:         kind,
		MissionID:    m.ID,
		MissionName:  m.Name,
		Mainline:     m.Mainline,
		Owner:        m.Owner,
		Provider:     m.Provider,
		Objective:    objective,
		SetIndex:     m.CurrentIndex,
		Progress:     m.Progress,
		Availability: m.Availability,
		Time:         b.env.Now(),
	}
}

func (b *base) notify(m *mission.Mission, kind core.NotificationKind, objective string) {
	n := b.notification(m, kind, objective)
	if b.env.Presenter != nil {
		for _, p := range b.recipients() {
			b.env.Presenter.Present(p, n)
		}
	}
	if b.env.Observe != nil {
		b.env.Observe(n)
	}
}

// presentTo shows a notification to a single participant without
// observing it.
func (b *base) presentTo(p core.ParticipantID, m *mission.Mission, kind core.NotificationKind) {
	if b.env.Presenter == nil {
		return
	}
	b.env.Presenter.Present(p, b.notification(m, kind, ""))
}
