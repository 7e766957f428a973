package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/factory"
	"github.com/xraph/custody/fee"
	"github.com/xraph/custody/id"
	"github.com/xraph/custody/journal"
	"github.com/xraph/custody/plugin"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/store"
	"github.com/xraph/custody/token"
	"github.com/xraph/custody/types"
)

// Version is the controller version reported by Versions.
const Version = "1.0.0"

// Well-known names of the system accounts created at genesis.
const (
	FeeSinkName        = "HUMANITY_CASH"
	CommunityChestName = "COMMUNITY_CHEST"
)

// Default system account ids.
var (
	DefaultFeeSink        = types.UserIDFromName(FeeSinkName)
	DefaultCommunityChest = types.UserIDFromName(CommunityChestName)
)

const replayPage = 1000

// Controller is the custodial ledger. It owns every sub-account, holds the
// backing tokens under its own principal and is the only writer of its
// journal.
type Controller struct {
	store   store.Store
	token   token.Token
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   func() time.Time
	self    types.Principal

	// Genesis configuration; ignored once a journal exists.
	genesis   journal.State
	bootstrap rbac.Snapshot
	logic     account.Logic

	mu       sync.RWMutex
	migrate  bool
	started  bool
	seq      uint64
	state    journal.State
	roles    *rbac.Table
	factory  factory.Factory
	beacon   *factory.Beacon
	accounts map[types.UserID]*account.Record
	registry []types.UserID
}

// New creates a controller that holds custody under self. The controller
// must be started before use.
func New(self types.Principal, tok token.Token, s store.Store, opts ...Option) (*Controller, error) {
	if self.IsZero() {
		return nil, fmt.Errorf("%w: controller principal", ErrMissingAddress)
	}
	if tok == nil || s == nil {
		return nil, errors.New("custody: token and store are required")
	}
	c := &Controller{
		store:   s,
		token:   tok,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		clock:   time.Now,
		self:    self,
		genesis: journal.State{
			CommunityChest: DefaultCommunityChest,
			FeeSink:        DefaultFeeSink,
			Fee:            fee.Default(),
			Demurrage:      demurrage.DefaultParams(),
		},
		bootstrap: rbac.Snapshot{},
		factory:   factory.New(),
		logic:     account.Standard{},
		accounts:  make(map[types.UserID]*account.Record),
		migrate:   true,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.genesis.Owner.IsZero() {
		c.genesis.Owner = self
	}
	if c.genesis.Custodian.IsZero() {
		c.genesis.Custodian = c.genesis.Owner
	}
	if err := c.genesis.Demurrage.Validate(); err != nil {
		return nil, err
	}
	if err := c.genesis.Fee.Validate(); err != nil {
		return nil, err
	}
	account.Register(c.logic)
	c.beacon = factory.NewBeacon(c.logic)
	return c, nil
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
		c.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(c *Controller) {
		_ = c.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.plugins.WithTimeout(d)
	}
}

// WithClock replaces time.Now. Decay is computed from this clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.clock = now
	}
}

// WithOwner sets the genesis owner. Defaults to the controller principal.
func WithOwner(p types.Principal) Option {
	return func(c *Controller) {
		c.genesis.Owner = p
	}
}

// WithCustodian sets the genesis custodian. Defaults to the owner.
func WithCustodian(p types.Principal) Option {
	return func(c *Controller) {
		c.genesis.Custodian = p
	}
}

// WithDemurrage sets the genesis decay parameters.
func WithDemurrage(p demurrage.Params) Option {
	return func(c *Controller) {
		c.genesis.Demurrage = p
	}
}

// WithRedemptionFee sets the genesis fee schedule.
func WithRedemptionFee(s fee.Schedule) Option {
	return func(c *Controller) {
		c.genesis.Fee = s
	}
}

// WithRole grants r to the given principals at genesis.
func WithRole(r rbac.Role, members ...types.Principal) Option {
	return func(c *Controller) {
		c.bootstrap[r] = append(c.bootstrap[r], members...)
	}
}

// WithFactory sets the account factory.
func WithFactory(f factory.Factory) Option {
	return func(c *Controller) {
		c.factory = f
	}
}

// WithLogic sets the genesis account implementation.
func WithLogic(l account.Logic) Option {
	return func(c *Controller) {
		c.logic = l
	}
}

// WithoutMigrate makes Start assume the store schema already exists.
func WithoutMigrate() Option {
	return func(c *Controller) {
		c.migrate = false
	}
}

// Start migrates the store and rebuilds the controller from its journal,
// writing a genesis commit when the journal is empty.
func (c *Controller) Start(ctx context.Context) error {
	if c.migrate {
		if err := c.store.Migrate(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	var err error
	if last, lerr := c.store.LastSeq(ctx); lerr != nil {
		err = lerr
	} else if last == 0 {
		err = c.writeGenesis(ctx)
	} else {
		err = c.replay(ctx)
	}
	if err == nil {
		c.started = true
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.plugins.EmitInit(ctx, c)

	c.logger.Info("custody controller started",
		"seq", c.seq,
		"accounts", len(c.registry),
		"owner", c.state.Owner,
		"implementation", c.state.Implementation,
		"paused", c.state.Paused,
	)
	return nil
}

// Stop shuts down plugins and closes the store.
func (c *Controller) Stop() error {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()

	c.plugins.EmitShutdown(context.Background())
	return c.store.Close()
}

func (c *Controller) writeGenesis(ctx context.Context) error {
	c.state = c.genesis
	c.state.Implementation = c.logic.Version()
	c.state.Factory = c.factory.Version()
	c.roles = rbac.New()

	tx := c.begin("genesis", c.state.Owner)
	for _, r := range []rbac.Role{rbac.Admin, rbac.Pauser} {
		if _, err := tx.roles().Grant(r, c.state.Owner); err != nil {
			return err
		}
	}
	for r, members := range c.bootstrap {
		for _, p := range members {
			if _, err := tx.roles().Grant(r, p); err != nil {
				return err
			}
		}
	}
	for _, uid := range []types.UserID{c.state.FeeSink, c.state.CommunityChest} {
		if _, err := tx.create(uid, account.KindSystem); err != nil {
			return err
		}
	}
	evts, err := c.commit(ctx, tx)
	if err != nil {
		return err
	}
	c.logger.Info("custody genesis written", "events", len(evts))
	return nil
}

func (c *Controller) replay(ctx context.Context) error {
	var after uint64
	var last *journal.Commit
	for {
		page, err := c.store.ListCommits(ctx, journal.ListOpts{AfterSeq: after, Limit: replayPage})
		if err != nil {
			return err
		}
		for _, cm := range page {
			if cm.Seq != after+1 {
				return fmt.Errorf("%w: gap in journal at %d", ErrSeqConflict, after+1)
			}
			for _, rec := range cm.Accounts {
				c.accounts[rec.UserID] = rec
			}
			after = cm.Seq
			last = cm
		}
		if len(page) < replayPage {
			break
		}
	}
	if last == nil {
		return nil
	}

	logic, ok := account.Lookup(last.State.Implementation)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownImplementation, last.State.Implementation)
	}
	c.beacon.Upgrade(logic)
	if last.State.Factory != c.factory.Version() {
		c.logger.Warn("configured factory differs from journal",
			"journal", last.State.Factory,
			"configured", c.factory.Version(),
		)
	}

	c.registry = c.registry[:0]
	for uid := range c.accounts {
		c.registry = append(c.registry, uid)
	}
	sort.Slice(c.registry, func(i, j int) bool {
		return c.accounts[c.registry[i]].Index < c.accounts[c.registry[j]].Index
	})
	c.state = last.State
	c.roles = rbac.FromSnapshot(last.State.Roles)
	c.seq = last.Seq
	return nil
}

// ──────────────────────────────────────────────────
// Staged transactions
// ──────────────────────────────────────────────────

// tokenMove is a custody token movement performed just before commit.
type tokenMove struct {
	mint   bool
	to     types.Principal
	amount types.Amount
}

// txn stages one operation on copies of the controller state. Nothing is
// visible until commit installs it.
type txn struct {
	c       *Controller
	op      string
	actor   types.Principal
	now     time.Time
	state   journal.State
	logic   account.Logic
	upgrade bool
	skip    bool
	factory factory.Factory

	staged  map[types.UserID]*account.Record
	order   []types.UserID
	created int
	rbac    *rbac.Table
	moves   []tokenMove
	events  []*event.Event
}

func (c *Controller) begin(op string, actor types.Principal) *txn {
	return &txn{
		c:       c,
		op:      op,
		actor:   actor,
		now:     c.clock().UTC(),
		state:   c.state,
		logic:   c.beacon.Logic(),
		factory: c.factory,
		staged:  make(map[types.UserID]*account.Record),
	}
}

func (tx *txn) env() account.Env {
	return account.Env{Caller: tx.c.self, Now: tx.now, Demurrage: tx.state.Demurrage}
}

// roles returns the staged role table, copying it on first use.
func (tx *txn) roles() *rbac.Table {
	if tx.rbac == nil {
		tx.rbac = tx.c.roles.Clone()
	}
	return tx.rbac
}

func (tx *txn) currentRoles() *rbac.Table {
	if tx.rbac != nil {
		return tx.rbac
	}
	return tx.c.roles
}

func (tx *txn) exists(uid types.UserID) bool {
	if _, ok := tx.staged[uid]; ok {
		return true
	}
	_, ok := tx.c.accounts[uid]
	return ok
}

// account stages uid and settles its decay. side names the role of the
// account in UserError.
func (tx *txn) account(uid types.UserID, side string) (*account.Record, error) {
	if rec, ok := tx.staged[uid]; ok {
		return rec, nil
	}
	live, ok := tx.c.accounts[uid]
	if !ok {
		return nil, &UserError{Side: side, UserID: uid, Err: ErrUnknownUser}
	}
	rec := live.Clone()
	tx.staged[uid] = rec
	tx.order = append(tx.order, uid)

	lost, err := tx.logic.Touch(rec, tx.env())
	if err != nil {
		return nil, &UserError{Side: side, UserID: uid, Err: err}
	}
	if lost.IsZero() {
		return rec, nil
	}
	if err := tx.toChest(lost); err != nil {
		return nil, err
	}
	tx.emit(event.DemurrageApplied, func(e *event.Event) {
		e.UserID = uid
		e.Counterparty = tx.state.CommunityChest
		e.Amount = lost
	})
	return rec, nil
}

// toChest credits the community chest.
func (tx *txn) toChest(amount types.Amount) error {
	chest, err := tx.account(tx.state.CommunityChest, "community chest")
	if err != nil {
		return err
	}
	return tx.logic.Credit(chest, tx.env(), amount)
}

func (tx *txn) create(uid types.UserID, kind account.Kind) (*account.Record, error) {
	if tx.exists(uid) {
		return nil, &UserError{Side: "user", UserID: uid, Err: ErrDuplicateUser}
	}
	rec, err := tx.factory.CreateAccount(tx.c.self, uid, kind, tx.now)
	if err != nil {
		return nil, err
	}
	rec.Index = len(tx.c.registry) + tx.created
	tx.created++
	tx.staged[uid] = rec
	tx.order = append(tx.order, uid)
	tx.emit(event.AccountCreated, func(e *event.Event) {
		e.UserID = uid
		e.Metadata = map[string]string{"kind": string(kind), "factory": rec.Factory}
	})
	return rec, nil
}

func (tx *txn) emit(kind event.Kind, fill func(*event.Event)) {
	e := &event.Event{
		ID:    id.NewEventID(),
		Kind:  kind,
		Actor: tx.actor,
		At:    tx.now,
	}
	if fill != nil {
		fill(e)
	}
	tx.events = append(tx.events, e)
}

// requireRole fails unless the actor holds one of roles. The owner passes
// when allowOwner is set.
func (tx *txn) requireRole(allowOwner bool, roles ...rbac.Role) error {
	if allowOwner && tx.actor == tx.state.Owner {
		return nil
	}
	t := tx.currentRoles()
	for _, r := range roles {
		if t.Has(r, tx.actor) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s needs %v", ErrUnauthorized, tx.actor, roles)
}

func (tx *txn) requireOwner() error {
	if tx.actor != tx.state.Owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, tx.actor)
	}
	return nil
}

func (tx *txn) requireNotPaused() error {
	if tx.state.Paused {
		return ErrPaused
	}
	return nil
}

// run executes fn as one atomic operation by the caller in ctx. Events are
// dispatched to plugins after the commit and outside the lock.
func (c *Controller) run(ctx context.Context, op string, fn func(tx *txn) error) error {
	caller, ok := PrincipalFrom(ctx)
	if !ok {
		return fmt.Errorf("%w: no caller principal", ErrUnauthorized)
	}

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	tx := c.begin(op, caller)
	if err := fn(tx); err != nil {
		c.mu.Unlock()
		c.logger.Debug("custody operation failed", "op", op, "actor", caller, "error", err)
		return err
	}
	if tx.skip {
		c.mu.Unlock()
		return nil
	}
	evts, err := c.commit(ctx, tx)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.logger.Debug("custody operation committed", "op", op, "actor", caller, "events", len(evts))
	c.plugins.Emit(ctx, evts)
	return nil
}

// guard consults OperationGuard plugins.
func (tx *txn) guard(ctx context.Context, userID, to types.UserID, amount types.Amount) error {
	err := tx.c.plugins.Guard(ctx, plugin.Check{
		Op:     tx.op,
		Actor:  tx.actor,
		UserID: userID,
		To:     to,
		Amount: amount,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return nil
}

// commit performs staged token movements, appends the journal entry and
// installs the staged state. Callers hold c.mu.
func (c *Controller) commit(ctx context.Context, tx *txn) ([]*event.Event, error) {
	for _, m := range tx.moves {
		var err error
		if m.mint {
			err = c.token.Mint(ctx, c.self, c.self, m.amount)
		} else {
			err = c.token.Transfer(ctx, c.self, m.to, m.amount)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTokenFailed, err)
		}
	}

	roles := c.roles
	if tx.rbac != nil {
		roles = tx.rbac
	}
	tx.state.Roles = roles.Snapshot()

	seq := c.seq + 1
	accounts := make([]*account.Record, 0, len(tx.order))
	for _, uid := range tx.order {
		accounts = append(accounts, tx.staged[uid])
	}
	for _, e := range tx.events {
		e.Seq = seq
	}
	cm := &journal.Commit{
		ID:        id.NewCommitID(),
		Seq:       seq,
		Op:        tx.op,
		Actor:     tx.actor,
		Accounts:  accounts,
		State:     tx.state,
		Events:    tx.events,
		CreatedAt: tx.now,
	}
	if err := c.store.AppendCommit(ctx, cm); err != nil {
		if len(tx.moves) > 0 {
			c.logger.Error("token movement applied but journal append failed",
				"op", tx.op,
				"seq", seq,
				"error", err,
			)
		}
		return nil, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	for _, rec := range accounts {
		if _, ok := c.accounts[rec.UserID]; !ok {
			c.registry = append(c.registry, rec.UserID)
		}
		c.accounts[rec.UserID] = rec
	}
	c.state = tx.state
	c.roles = roles
	c.factory = tx.factory
	if tx.upgrade {
		account.Register(tx.logic)
		c.beacon.Upgrade(tx.logic)
	}
	c.seq = seq
	return tx.events, nil
}
