package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"meme-presale/internal/domain"
	"meme-presale/internal/feed"
	"meme-presale/internal/ledger"
	"meme-presale/internal/observability"
	"meme-presale/internal/pricing"
	"meme-presale/internal/sale"
	"meme-presale/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// api serves the presale HTTP surface.
type api struct {
	engine    *sale.Engine
	ledger    ledger.Ledger
	analytics storage.ReceiptAnalyticsStore // optional
	hub       *feed.Hub                     // optional
	logger    logrus.FieldLogger
	devFaucet bool
}

// routes returns the presale mux.
func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /tiers", a.handleTiers)
	mux.HandleFunc("GET /config", a.handleGetConfig)
	mux.HandleFunc("PUT /config", a.handlePutConfig)

	mux.HandleFunc("POST /launches", a.handleCreateLaunch)
	mux.HandleFunc("GET /launches/{creator}", a.handleListLaunches)
	mux.HandleFunc("POST /launches/{creator}/{index}/mint", a.handleMint)
	mux.HandleFunc("POST /launches/{creator}/{index}/buy", a.handleBuy)
	mux.HandleFunc("POST /launches/{creator}/{index}/claim", a.handleClaim)
	mux.HandleFunc("POST /launches/{creator}/{index}/distribute", a.handleDistribute)
	mux.HandleFunc("GET /launches/{creator}/{index}/status", a.handleStatus)
	mux.HandleFunc("GET /launches/{creator}/{index}/quote", a.handleQuote)
	mux.HandleFunc("GET /launches/{creator}/{index}/purchases", a.handlePurchases)
	mux.HandleFunc("GET /launches/{creator}/{index}/claims", a.handleClaims)
	mux.HandleFunc("GET /launches/{creator}/{index}/volume", a.handleVolume)

	mux.HandleFunc("GET /accounts/{account}", a.handleBalance)
	if a.devFaucet {
		mux.HandleFunc("POST /dev/fund", a.handleFund)
	}

	if a.hub != nil {
		mux.Handle("GET /ws/receipts", a.hub)
	}
	return mux
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// statusForClass maps a sale error class to an HTTP status.
func statusForClass(class sale.ErrorClass) int {
	switch class {
	case sale.ClassInvalid, sale.ClassArithmetic:
		return http.StatusBadRequest
	case sale.ClassNotFound:
		return http.StatusNotFound
	case sale.ClassUnauthorized:
		return http.StatusForbidden
	case sale.ClassPrecondition:
		return http.StatusConflict
	case sale.ClassCapacity, sale.ClassLedger:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes err with the status of its class. Server-side faults are logged.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	class := sale.Classify(err)
	status := statusForClass(class)
	if status == http.StatusInternalServerError {
		a.logger.WithFields(logrus.Fields{
			"path":  r.URL.Path,
			"class": class,
		}).Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Class: string(class)})
}

func (a *api) badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error: fmt.Sprintf(format, args...),
		Class: string(sale.ClassInvalid),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// launchKey reads the {creator}/{index} path values.
func launchKey(r *http.Request) (domain.LaunchKey, error) {
	creator := r.PathValue("creator")
	idx, err := strconv.ParseUint(r.PathValue("index"), 10, 32)
	if err != nil {
		return domain.LaunchKey{}, fmt.Errorf("malformed launch index %q", r.PathValue("index"))
	}
	return domain.LaunchKey{Creator: creator, Index: uint32(idx)}, nil
}

// lamports returns raw when set, otherwise the parsed SOL string.
func lamports(raw uint64, sol string) (uint64, error) {
	if sol == "" {
		return raw, nil
	}
	if raw != 0 {
		return 0, errors.New("set either lamports or SOL, not both")
	}
	return domain.ParseSOL(sol)
}

// TierView describes a funding tier.
type TierView struct {
	Index       uint8  `json:"index"`
	Name        string `json:"name"`
	Target      uint64 `json:"target_lamports"`
	TargetSOL   string `json:"target_sol"`
	DurationSec int64  `json:"duration_seconds"`
	UnitPrice   uint64 `json:"unit_price"`
}

func (a *api) handleTiers(w http.ResponseWriter, r *http.Request) {
	var tiers []TierView
	for _, t := range domain.AllTiers() {
		price, err := pricing.UnitPrice(t)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		tiers = append(tiers, TierView{
			Index:       uint8(t),
			Name:        t.String(),
			Target:      t.Target(),
			TargetSOL:   domain.FormatLamports(t.Target()),
			DurationSec: t.Duration(),
			UnitPrice:   price,
		})
	}
	writeJSON(w, http.StatusOK, tiers)
}

// GlobalConfigBody is the wire form of the global config.
type GlobalConfigBody struct {
	Caller        string `json:"caller,omitempty"`
	Admin         string `json:"admin"`
	SuccessFeeBps uint16 `json:"success_fee_bps"`
	FeeReceiver   string `json:"fee_receiver"`
}

func (a *api) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.engine.GlobalConfig(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GlobalConfigBody{
		Admin:         cfg.Admin,
		SuccessFeeBps: cfg.SuccessFeeBps,
		FeeReceiver:   cfg.FeeReceiver,
	})
}

func (a *api) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var body GlobalConfigBody
	if err := decodeBody(w, r, &body); err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	cfg := &domain.GlobalConfig{
		Admin:         body.Admin,
		SuccessFeeBps: body.SuccessFeeBps,
		FeeReceiver:   body.FeeReceiver,
	}
	if err := a.engine.UpdateGlobalConfig(r.Context(), body.Caller, cfg); err != nil {
		a.writeError(w, r, err)
		return
	}
	body.Caller = ""
	writeJSON(w, http.StatusOK, body)
}

// CreateLaunchBody is the request of POST /launches.
type CreateLaunchBody struct {
	Creator     string `json:"creator"`
	Tier        string `json:"tier"` // name or index
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	URI         string `json:"uri"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Telegram    string `json:"telegram"`
	Twitter     string `json:"twitter"`
}

// LaunchView is the wire form of a launch.
type LaunchView struct {
	Creator     string `json:"creator"`
	Index       uint32 `json:"index"`
	Address     string `json:"address"`
	Tier        string `json:"tier"`
	Status      string `json:"status"`
	TokenID     string `json:"mint,omitempty"`
	CreatedTime int64  `json:"created_time"`
	Deadline    int64  `json:"deadline"`
	Halted      bool   `json:"halted"`
	Settled     bool   `json:"settled"`
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
}

func newLaunchView(l *domain.Launch) LaunchView {
	return LaunchView{
		Creator:     l.Creator,
		Index:       l.Index,
		Address:     l.Address,
		Tier:        l.Tier.String(),
		Status:      l.Status.String(),
		TokenID:     l.TokenID,
		CreatedTime: l.CreatedTime,
		Deadline:    l.Deadline(),
		Halted:      l.Halted,
		Settled:     l.Settled,
		Name:        l.Metadata.Name,
		Symbol:      l.Metadata.Symbol,
	}
}

func (a *api) handleCreateLaunch(w http.ResponseWriter, r *http.Request) {
	var body CreateLaunchBody
	if err := decodeBody(w, r, &body); err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	tier, err := domain.ParseTier(body.Tier)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	l, err := a.engine.CreateLaunch(r.Context(), sale.CreateRequest{
		Creator: body.Creator,
		Tier:    tier,
		Metadata: domain.LaunchMetadata{
			Name:        body.Name,
			Symbol:      body.Symbol,
			URI:         body.URI,
			Description: body.Description,
			Website:     body.Website,
			Telegram:    body.Telegram,
			Twitter:     body.Twitter,
		},
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLaunchView(l))
}

func (a *api) handleListLaunches(w http.ResponseWriter, r *http.Request) {
	launches, err := a.engine.LaunchesByCreator(r.Context(), r.PathValue("creator"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	views := make([]LaunchView, 0, len(launches))
	for _, l := range launches {
		views = append(views, newLaunchView(l))
	}
	writeJSON(w, http.StatusOK, views)
}

// MintBody is the request of POST .../mint.
type MintBody struct {
	Caller string `json:"caller"`
	Seed   uint64 `json:"seed"`
}

func (a *api) handleMint(w http.ResponseWriter, r *http.Request) {
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	var body MintBody
	if err := decodeBody(w, r, &body); err != nil {
		a.badRequest(w, "%v", err)
		return
	}

	created, err := a.engine.MintToken(r.Context(), sale.MintRequest{Launch: key, Caller: body.Caller, Seed: body.Seed})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

// BuyBody is the request of POST .../buy.
type BuyBody struct {
	Buyer      string `json:"buyer"`
	Deposit    uint64 `json:"deposit"`               // lamports
	DepositSOL string `json:"deposit_sol,omitempty"` // decimal SOL, alternative to Deposit
	Reference  string `json:"reference,omitempty"`
}

func (a *api) handleBuy(w http.ResponseWriter, r *http.Request) {
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	var body BuyBody
	if err := decodeBody(w, r, &body); err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	deposit, err := lamports(body.Deposit, body.DepositSOL)
	if err != nil {
		a.badRequest(w, "deposit: %v", err)
		return
	}

	receipt, err := a.engine.Buy(r.Context(), sale.BuyRequest{
		Launch:    key,
		Buyer:     body.Buyer,
		Deposit:   deposit,
		Reference: body.Reference,
	})
	if receipt != nil {
		// Committed; a failed receipt write is reported in the log only.
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	a.writeError(w, r, err)
}

// ClaimBody is the request of POST .../claim.
type ClaimBody struct {
	Claimer   string `json:"claimer"`
	Units     uint64 `json:"units"`
	Reference string `json:"reference,omitempty"`
}

func (a *api) handleClaim(w http.ResponseWriter, r *http.Request) {
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	var body ClaimBody
	if err := decodeBody(w, r, &body); err != nil {
		a.badRequest(w, "%v", err)
		return
	}

	receipt, err := a.engine.Claim(r.Context(), sale.ClaimRequest{
		Launch:    key,
		Claimer:   body.Claimer,
		Units:     body.Units,
		Reference: body.Reference,
	})
	if receipt != nil {
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	a.writeError(w, r, err)
}

func (a *api) handleDistribute(w http.ResponseWriter, r *http.Request) {
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}

	receipt, err := a.engine.DistributeSuccess(r.Context(), key)
	if receipt != nil {
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	a.writeError(w, r, err)
}

// StatusResponse is the JSON response of GET .../status.
type StatusResponse struct {
	Launch         LaunchView `json:"launch"`
	StoredStatus   string     `json:"stored_status"`
	DerivedStatus  string     `json:"derived_status"`
	Sold           uint64     `json:"sold"`
	SoldTokens     string     `json:"sold_tokens"`
	Remaining      uint64     `json:"remaining"`
	UnitPrice      uint64     `json:"unit_price"`
	PoolLamports   uint64     `json:"pool_lamports"`
	PoolSOL        string     `json:"pool_sol"`
	DeadlinePassed bool       `json:"deadline_passed"`
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}

	v, err := a.engine.Status(r.Context(), key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Launch:         newLaunchView(v.Launch),
		StoredStatus:   v.StoredStatus.String(),
		DerivedStatus:  v.DerivedStatus.String(),
		Sold:           v.Sold,
		SoldTokens:     domain.FormatTokens(v.Sold),
		Remaining:      v.Remaining,
		UnitPrice:      v.UnitPrice,
		PoolLamports:   v.PoolLamports,
		PoolSOL:        domain.FormatLamports(v.PoolLamports),
		DeadlinePassed: v.DeadlinePassed,
	})
}

// QuoteResponse is the JSON response of GET .../quote.
type QuoteResponse struct {
	Deposit    uint64 `json:"deposit"`
	Units      uint64 `json:"units"`
	Tokens     string `json:"tokens"`
	MaxDeposit uint64 `json:"max_deposit"`
}

func (a *api) handleQuote(w http.ResponseWriter, r *http.Request) {
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	var raw uint64
	if s := r.URL.Query().Get("deposit"); s != "" {
		raw, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			a.badRequest(w, "malformed deposit %q", s)
			return
		}
	}
	deposit, err := lamports(raw, r.URL.Query().Get("deposit_sol"))
	if err != nil {
		a.badRequest(w, "deposit: %v", err)
		return
	}

	units, maxDeposit, err := a.engine.Quote(r.Context(), key, deposit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteResponse{
		Deposit:    deposit,
		Units:      units,
		Tokens:     domain.FormatTokens(units),
		MaxDeposit: maxDeposit,
	})
}

func (a *api) handlePurchases(w http.ResponseWriter, r *http.Request) {
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	receipts, err := a.engine.Purchases(r.Context(), key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if receipts == nil {
		receipts = []*domain.PurchaseReceipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (a *api) handleClaims(w http.ResponseWriter, r *http.Request) {
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	receipts, err := a.engine.Claims(r.Context(), key)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if receipts == nil {
		receipts = []*domain.ClaimReceipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (a *api) handleVolume(w http.ResponseWriter, r *http.Request) {
	if a.analytics == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "analytics store not configured"})
		return
	}
	key, err := launchKey(r)
	if err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	if _, err := a.engine.Launch(r.Context(), key); err != nil {
		a.writeError(w, r, err)
		return
	}

	start := time.Now()
	vol, err := a.analytics.GetLaunchVolume(r.Context(), key)
	observability.RecordDBQuery("analytics", "launch_volume", time.Since(start).Seconds(), err)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vol)
}

// BalanceResponse is the JSON response of GET /accounts/{account}.
type BalanceResponse struct {
	Account  string `json:"account"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
	Token    string `json:"mint,omitempty"`
	Units    uint64 `json:"units,omitempty"`
	Tokens   string `json:"tokens,omitempty"`
}

func (a *api) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account := r.PathValue("account")

	bal, err := a.ledger.Balance(ctx, account)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := BalanceResponse{Account: account, Lamports: bal, SOL: domain.FormatLamports(bal)}

	if token := r.URL.Query().Get("mint"); token != "" {
		units, err := a.ledger.TokenBalance(ctx, token, account)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		resp.Token = token
		resp.Units = units
		resp.Tokens = domain.FormatTokens(units)
	}
	writeJSON(w, http.StatusOK, resp)
}

// FundBody is the request of POST /dev/fund.
type FundBody struct {
	Account  string `json:"account"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol,omitempty"`
}

func (a *api) handleFund(w http.ResponseWriter, r *http.Request) {
	var body FundBody
	if err := decodeBody(w, r, &body); err != nil {
		a.badRequest(w, "%v", err)
		return
	}
	amount, err := lamports(body.Lamports, body.SOL)
	if err != nil {
		a.badRequest(w, "amount: %v", err)
		return
	}
	if body.Account == "" || amount == 0 {
		a.badRequest(w, "account and a positive amount are required")
		return
	}

	if err := a.ledger.Fund(r.Context(), body.Account, amount); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.logger.WithFields(logrus.Fields{
		"account":  body.Account,
		"lamports": amount,
	}).Info("dev faucet funded account")

	bal, err := a.ledger.Balance(r.Context(), body.Account)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Account: body.Account, Lamports: bal, SOL: domain.FormatLamports(bal)})
}
