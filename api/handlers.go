package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/custody"
	"github.com/xraph/custody/account"
	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/fee"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/types"
)

const (
	defaultPage = 100
	maxPage     = 1000
)

// ──────────────────────────────────────────────────
// Request decoding
// ──────────────────────────────────────────────────

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// parseAmount reads a decimal token amount such as "12.50". Empty is zero.
func parseAmount(s string) (types.Amount, error) {
	if s == "" {
		return types.Zero, nil
	}
	a, err := types.ParseUnits(s, types.DefaultDecimals)
	if err != nil {
		return types.Zero, fmt.Errorf("%w: amount %q: %v", errBadRequest, s, err)
	}
	return a, nil
}

// parseUserID accepts a 0x-prefixed 32-byte hex id or a UUID.
func parseUserID(s string) (types.UserID, error) {
	if uid, err := types.ParseUserID(s); err == nil {
		return uid, nil
	}
	if uid, err := types.UserIDFromUUID(s); err == nil {
		return uid, nil
	}
	return types.UserID{}, fmt.Errorf("%w: user id %q", errBadRequest, s)
}

func formatAmount(a types.Amount) string {
	return types.FormatUnits(a, types.DefaultDecimals)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", errBadRequest, key, v)
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Views
// ──────────────────────────────────────────────────

type holdView struct {
	ID        string    `json:"id"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type settlementView struct {
	ID        string    `json:"id"`
	Amount    string    `json:"amount"`
	Released  string    `json:"released"`
	SettledAt time.Time `json:"settled_at"`
}

type accountView struct {
	UserID        types.UserID     `json:"user_id"`
	Index         int              `json:"index"`
	Kind          account.Kind     `json:"kind"`
	Owner         types.Principal  `json:"owner"`
	Factory       string           `json:"factory"`
	Balance       string           `json:"balance"`
	Available     string           `json:"available"`
	Authorized    string           `json:"authorized"`
	StoredBalance string           `json:"stored_balance"`
	Checkpoint    time.Time        `json:"last_decay_checkpoint"`
	Holds         []holdView       `json:"holds"`
	Settlements   []settlementView `json:"settlements"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (s *Server) accountView(uid types.UserID) (*accountView, error) {
	rec, err := s.c.Account(uid)
	if err != nil {
		return nil, err
	}
	bal, err := s.c.BalanceOf(uid)
	if err != nil {
		return nil, err
	}
	avail, err := s.c.AvailableBalanceOf(uid)
	if err != nil {
		return nil, err
	}
	v := &accountView{
		UserID:        rec.UserID,
		Index:         rec.Index,
		Kind:          rec.Kind,
		Owner:         rec.Owner,
		Factory:       rec.Factory,
		Balance:       formatAmount(bal),
		Available:     formatAmount(avail),
		Authorized:    formatAmount(rec.Authorized()),
		StoredBalance: formatAmount(rec.Balance),
		Checkpoint:    rec.LastDecayCheckpoint,
		Holds:         make([]holdView, 0, len(rec.Holds)),
		Settlements:   make([]settlementView, 0, len(rec.Settlements)),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	for _, h := range rec.Holds {
		v.Holds = append(v.Holds, holdView{ID: h.ID, Amount: formatAmount(h.Amount), CreatedAt: h.CreatedAt})
	}
	for _, st := range rec.Settlements {
		v.Settlements = append(v.Settlements, settlementView{
			ID:        st.ID,
			Amount:    formatAmount(st.Amount),
			Released:  formatAmount(st.Released),
			SettledAt: st.SettledAt,
		})
	}
	return v, nil
}

type demurrageBody struct {
	EpochLength string `json:"epoch_length"`
	FreeEpochs  uint64 `json:"free_epochs"`
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

type feeBody struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
	Quantum     string `json:"quantum"`
}

type statusView struct {
	Owner          types.Principal  `json:"owner"`
	Custodian      types.Principal  `json:"custodian"`
	Paused         bool             `json:"paused"`
	Pool           string           `json:"pool"`
	Custody        string           `json:"custody"`
	FeeSink        types.UserID     `json:"fee_sink"`
	CommunityChest types.UserID     `json:"community_chest"`
	Accounts       int              `json:"accounts"`
	Seq            uint64           `json:"seq"`
	Versions       custody.Versions `json:"versions"`
	Demurrage      demurrageBody    `json:"demurrage"`
	Fee            feeBody          `json:"fee"`
}

// ──────────────────────────────────────────────────
// Status and history
// ──────────────────────────────────────────────────

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	held, err := s.c.CustodyBalance(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p := s.c.DemurrageParameters()
	f := s.c.RedemptionFee()
	writeJSON(w, http.StatusOK, statusView{
		Owner:          s.c.Owner(),
		Custodian:      s.c.Custodian(),
		Paused:         s.c.Paused(),
		Pool:           formatAmount(s.c.PoolBalance()),
		Custody:        formatAmount(held),
		FeeSink:        s.c.FeeSink(),
		CommunityChest: s.c.CommunityChest(),
		Accounts:       s.c.AccountCount(),
		Seq:            s.c.Seq(),
		Versions:       s.c.Versions(),
		Demurrage: demurrageBody{
			EpochLength: p.EpochLength.String(),
			FreeEpochs:  p.FreeEpochs,
			Numerator:   p.Numerator,
			Denominator: p.Denominator,
		},
		Fee: feeBody{
			Numerator:   f.Numerator,
			Denominator: f.Denominator,
			Quantum:     formatAmount(f.Quantum),
		},
	})
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{Kind: event.Kind(r.URL.Query().Get("kind"))}
	if v := r.URL.Query().Get("user_id"); v != "" {
		uid, err := parseUserID(v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		opts.UserID = uid
	}
	after, err := queryInt(r, "after", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts.AfterSeq = uint64(after)
	opts.Limit = min(limit, maxPage)

	evts, err := s.c.Events(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if evts == nil {
		evts = []*event.Event{}
	}
	writeJSON(w, http.StatusOK, evts)
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

func (s *Server) userID(w http.ResponseWriter, r *http.Request) (types.UserID, bool) {
	uid, err := parseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return types.UserID{}, false
	}
	return uid, true
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	uid, err := parseUserID(body.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.c.CreateAccount(r.Context(), uid); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.accountView(uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPage)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit = min(limit, maxPage)

	total := s.c.AccountCount()
	out := make([]*accountView, 0, limit)
	for i := offset; i < total && len(out) < limit; i++ {
		uid, err := s.c.AccountAt(i)
		if err != nil {
			break
		}
		v, err := s.accountView(uid)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "accounts": out})
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.userID(w, r)
	if !ok {
		return
	}
	v, err := s.accountView(uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// ──────────────────────────────────────────────────
// Funds
// ──────────────────────────────────────────────────

type amountBody struct {
	Amount string `json:"amount"`
}

// mutate decodes body, runs op and answers with the account view.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, body any, op func(uid types.UserID) error) {
	uid, ok := s.userID(w, r)
	if !ok {
		return
	}
	if body != nil {
		if err := decode(r, body); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if err := op(uid); err != nil {
		s.fail(w, r, err)
		return
	}
	v, err := s.accountView(uid)
	if err != nil {
		// The account may no longer be readable by this controller.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var body amountBody
	s.mutate(w, r, &body, func(uid types.UserID) error {
		amt, err := parseAmount(body.Amount)
		if err != nil {
			return err
		}
		return s.c.Deposit(r.Context(), uid, amt)
	})
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var body amountBody
	s.mutate(w, r, &body, func(uid types.UserID) error {
		amt, err := parseAmount(body.Amount)
		if err != nil {
			return err
		}
		return s.c.Withdraw(r.Context(), uid, amt)
	})
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To      string `json:"to"`
		Amount  string `json:"amount"`
		RoundUp string `json:"round_up"`
	}
	s.mutate(w, r, &body, func(uid types.UserID) error {
		to, err := parseUserID(body.To)
		if err != nil {
			return err
		}
		amt, err := parseAmount(body.Amount)
		if err != nil {
			return err
		}
		roundUp, err := parseAmount(body.RoundUp)
		if err != nil {
			return err
		}
		return s.c.Transfer(r.Context(), uid, to, amt, roundUp)
	})
}

func (s *Server) transferOut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
		Amount  string `json:"amount"`
		RoundUp string `json:"round_up"`
	}
	s.mutate(w, r, &body, func(uid types.UserID) error {
		amt, err := parseAmount(body.Amount)
		if err != nil {
			return err
		}
		roundUp, err := parseAmount(body.RoundUp)
		if err != nil {
			return err
		}
		return s.c.TransferToAddress(r.Context(), uid, types.Principal(body.Address), amt, roundUp)
	})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AuthID string `json:"auth_id"`
		Amount string `json:"amount"`
	}
	s.mutate(w, r, &body, func(uid types.UserID) error {
		amt, err := parseAmount(body.Amount)
		if err != nil {
			return err
		}
		return s.c.Authorize(r.Context(), uid, body.AuthID, amt)
	})
}

func (s *Server) deauthorize(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, nil, func(uid types.UserID) error {
		return s.c.Deauthorize(r.Context(), uid, chi.URLParam(r, "authID"))
	})
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SettlementID string `json:"settlement_id"`
		Amount       string `json:"amount"`
	}
	s.mutate(w, r, &body, func(uid types.UserID) error {
		amt, err := parseAmount(body.Amount)
		if err != nil {
			return err
		}
		return s.c.Settle(r.Context(), uid, body.SettlementID, amt)
	})
}

func (s *Server) transferAccountOwnership(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Owner string `json:"owner"`
	}
	s.mutate(w, r, &body, func(uid types.UserID) error {
		return s.c.TransferAccountOwnership(r.Context(), types.Principal(body.Owner), uid)
	})
}

// ──────────────────────────────────────────────────
// Administration
// ──────────────────────────────────────────────────

// admin runs op and answers with the controller status.
func (s *Server) admin(w http.ResponseWriter, r *http.Request, op func() error) {
	if err := op(); err != nil {
		s.fail(w, r, err)
		return
	}
	s.status(w, r)
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error { return s.c.Reconcile(r.Context()) })
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error { return s.c.Pause(r.Context()) })
}

func (s *Server) unpause(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error { return s.c.Unpause(r.Context()) })
}

func (s *Server) withdrawToCustodian(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error { return s.c.WithdrawToCustodian(r.Context()) })
}

func (s *Server) setDemurrage(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error {
		var body demurrageBody
		if err := decode(r, &body); err != nil {
			return err
		}
		epoch, err := time.ParseDuration(body.EpochLength)
		if err != nil {
			return fmt.Errorf("%w: epoch_length: %v", errBadRequest, err)
		}
		return s.c.SetDemurrageParameters(r.Context(), demurrage.Params{
			EpochLength: epoch,
			FreeEpochs:  body.FreeEpochs,
			Numerator:   body.Numerator,
			Denominator: body.Denominator,
		})
	})
}

func (s *Server) setFee(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error {
		var body feeBody
		if err := decode(r, &body); err != nil {
			return err
		}
		quantum, err := parseAmount(body.Quantum)
		if err != nil {
			return err
		}
		return s.c.SetRedemptionFee(r.Context(), fee.Schedule{
			Numerator:   body.Numerator,
			Denominator: body.Denominator,
			Quantum:     quantum,
		})
	})
}

type addressBody struct {
	Address string `json:"address"`
}

type userBody struct {
	UserID string `json:"user_id"`
}

func (s *Server) setCustodian(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error {
		var body addressBody
		if err := decode(r, &body); err != nil {
			return err
		}
		return s.c.SetCustodian(r.Context(), types.Principal(body.Address))
	})
}

func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error {
		var body addressBody
		if err := decode(r, &body); err != nil {
			return err
		}
		return s.c.TransferOwnership(r.Context(), types.Principal(body.Address))
	})
}

func (s *Server) setCommunityChest(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error {
		var body userBody
		if err := decode(r, &body); err != nil {
			return err
		}
		uid, err := parseUserID(body.UserID)
		if err != nil {
			return err
		}
		return s.c.SetCommunityChest(r.Context(), uid)
	})
}

func (s *Server) setFeeSink(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error {
		var body userBody
		if err := decode(r, &body); err != nil {
			return err
		}
		uid, err := parseUserID(body.UserID)
		if err != nil {
			return err
		}
		return s.c.SetFeeSink(r.Context(), uid)
	})
}

// updateImplementation switches to a logic version registered in-process
// with account.Register.
func (s *Server) updateImplementation(w http.ResponseWriter, r *http.Request) {
	s.admin(w, r, func() error {
		var body struct {
			Version string `json:"version"`
		}
		if err := decode(r, &body); err != nil {
			return err
		}
		l, ok := account.Lookup(body.Version)
		if !ok {
			return fmt.Errorf("%w: %q", custody.ErrUnknownImplementation, body.Version)
		}
		return s.c.UpdateAccountImplementation(r.Context(), l)
	})
}

func (s *Server) roleMembers(w http.ResponseWriter, r *http.Request) {
	role := rbac.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		s.fail(w, r, fmt.Errorf("%w: %q", custody.ErrUnknownRole, role))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"role":    role,
		"members": s.c.RoleMembers(role),
	})
}

func (s *Server) grantRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Principal string `json:"principal"`
	}
	if err := decode(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	role := rbac.Role(chi.URLParam(r, "role"))
	if err := s.c.GrantRole(r.Context(), role, types.Principal(body.Principal)); err != nil {
		s.fail(w, r, err)
		return
	}
	s.roleMembers(w, r)
}

func (s *Server) revokeRole(w http.ResponseWriter, r *http.Request) {
	role := rbac.Role(chi.URLParam(r, "role"))
	p := types.Principal(chi.URLParam(r, "principal"))
	if err := s.c.RevokeRole(r.Context(), role, p); err != nil {
		s.fail(w, r, err)
		return
	}
	s.roleMembers(w, r)
}
