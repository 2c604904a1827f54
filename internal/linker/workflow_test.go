package linker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"linkrails/internal/issuer"
	"linkrails/internal/journal"
	"linkrails/internal/wallet"
)

type stubIssuer struct {
	txs        []issuer.UnsignedTx
	prepareErr error
	link       string
	resolveErr error

	prepareCalls int
	lastPrepare  issuer.PrepareRequest
	resolveCalls int
	lastResolve  issuer.ResolveRequest
}

func (s *stubIssuer) Prepare(_ context.Context, req issuer.PrepareRequest) ([]issuer.UnsignedTx, error) {
	s.prepareCalls++
	s.lastPrepare = req
	if s.prepareErr != nil {
		return nil, s.prepareErr
	}
	return s.txs, nil
}

func (s *stubIssuer) ResolveLink(_ context.Context, req issuer.ResolveRequest) (string, error) {
	s.resolveCalls++
	s.lastResolve = req
	if s.resolveErr != nil {
		return "", s.resolveErr
	}
	return s.link, nil
}

type stubSigner struct {
	hashes []string
	errs   []error

	calls []issuer.UnsignedTx
}

func (s *stubSigner) SignAndSend(_ context.Context, tx issuer.UnsignedTx) (string, error) {
	idx := len(s.calls)
	s.calls = append(s.calls, tx)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return "", s.errs[idx]
	}
	if idx < len(s.hashes) {
		return s.hashes[idx], nil
	}
	return fmt.Sprintf("0xhash%d", idx), nil
}

func (s *stubSigner) Address() string {
	return "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
}

func newTestWorkflow(iss *stubIssuer, signer *stubSigner, store journal.Store) *Workflow {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	if store == nil {
		store = journal.NewMemoryStore()
	}
	return NewWorkflow(iss, signer, store, 11_155_111, 9, log)
}

func amount(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse amount %s: %v", raw, err)
	}
	return d
}

func TestCreateLinkHappyPath(t *testing.T) {
	iss := &stubIssuer{
		txs:  []issuer.UnsignedTx{{To: "0x000000000000000000000000000000000000dEaD", Value: "1500000000"}},
		link: "https://peanut.to/claim?c=11155111&v=abc",
	}
	signer := &stubSigner{hashes: []string{"0xabc"}}
	wf := newTestWorkflow(iss, signer, nil)

	result, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "1.5")})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	if result.Link != iss.link {
		t.Fatalf("unexpected link: %s", result.Link)
	}
	if len(result.TxHashes) != 1 || result.TxHashes[0] != "0xabc" {
		t.Fatalf("unexpected hashes: %v", result.TxHashes)
	}
	if iss.lastPrepare.TokenAmount != "1500000000" {
		t.Fatalf("expected exact base-unit amount, got %s", iss.lastPrepare.TokenAmount)
	}
	if iss.lastPrepare.TokenType != 0 || iss.lastPrepare.TokenDecimals != 9 {
		t.Fatalf("unexpected prepare request: %+v", iss.lastPrepare)
	}
	if len(iss.lastPrepare.Secrets) != 1 || iss.lastPrepare.Secrets[0] == "" {
		t.Fatalf("expected one deposit secret, got %v", iss.lastPrepare.Secrets)
	}
	if iss.lastResolve.TxHash != "0xabc" {
		t.Fatalf("resolve anchored to wrong hash: %s", iss.lastResolve.TxHash)
	}
	if iss.lastResolve.Secrets[0] != iss.lastPrepare.Secrets[0] {
		t.Fatal("resolve used a different secret than prepare")
	}
}

func TestCreateLinkFreshSecretPerRequest(t *testing.T) {
	iss := &stubIssuer{
		txs:  []issuer.UnsignedTx{{To: "0x000000000000000000000000000000000000dEaD", Value: "1"}},
		link: "https://peanut.to/claim?c=1&v=x",
	}
	wf := newTestWorkflow(iss, &stubSigner{}, nil)

	if _, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "1")}); err != nil {
		t.Fatalf("create link: %v", err)
	}
	first := iss.lastPrepare.Secrets[0]

	if _, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "1")}); err != nil {
		t.Fatalf("create link: %v", err)
	}
	if iss.lastPrepare.Secrets[0] == first {
		t.Fatal("deposit secret reused across requests")
	}
}

func TestCreateLinkRejectsNonPositiveAmountBeforeAnyCall(t *testing.T) {
	iss := &stubIssuer{}
	signer := &stubSigner{}
	wf := newTestWorkflow(iss, signer, nil)

	for _, raw := range []string{"0", "-2"} {
		_, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, raw)})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount for %s, got %v", raw, err)
		}
	}
	if iss.prepareCalls != 0 || len(signer.calls) != 0 {
		t.Fatal("collaborators called for invalid amount")
	}
}

func TestCreateLinkRejectsUnknownTokenType(t *testing.T) {
	iss := &stubIssuer{}
	signer := &stubSigner{}
	wf := newTestWorkflow(iss, signer, nil)

	for _, tt := range []TokenType{-1, 4, 99} {
		_, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "1"), TokenType: tt})
		if !errors.Is(err, ErrInvalidTokenType) {
			t.Fatalf("expected ErrInvalidTokenType for %d, got %v", tt, err)
		}
	}
	if iss.prepareCalls != 0 || len(signer.calls) != 0 {
		t.Fatal("collaborators called for invalid token type")
	}
}

func TestCreateLinkEmptyPrepareFailsBeforeSigning(t *testing.T) {
	iss := &stubIssuer{txs: nil}
	signer := &stubSigner{}
	wf := newTestWorkflow(iss, signer, nil)

	_, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "1")})
	if !errors.Is(err, ErrPreparationFailed) {
		t.Fatalf("expected ErrPreparationFailed, got %v", err)
	}
	if len(signer.calls) != 0 {
		t.Fatal("signer called after empty prepare")
	}
}

func TestCreateLinkSignsAllTransactionsInOrder(t *testing.T) {
	iss := &stubIssuer{
		txs: []issuer.UnsignedTx{
			{To: "0x0000000000000000000000000000000000000001", Value: "1"},
			{To: "0x0000000000000000000000000000000000000002", Value: "2"},
			{To: "0x0000000000000000000000000000000000000003", Value: "3"},
		},
		link: "https://peanut.to/claim?c=1&v=multi",
	}
	signer := &stubSigner{hashes: []string{"0x1", "0x2", "0x3"}}
	wf := newTestWorkflow(iss, signer, nil)

	result, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "6")})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	if len(signer.calls) != 3 {
		t.Fatalf("expected 3 sign calls, got %d", len(signer.calls))
	}
	for i, call := range signer.calls {
		if call.Value != iss.txs[i].Value {
			t.Fatalf("call %d out of order: %+v", i, call)
		}
	}
	if iss.lastResolve.TxHash != "0x3" {
		t.Fatalf("resolve must use the last hash, got %s", iss.lastResolve.TxHash)
	}
	if len(result.TxHashes) != 3 || result.TxHashes[2] != "0x3" {
		t.Fatalf("unexpected hashes: %v", result.TxHashes)
	}
}

func TestCreateLinkInsufficientFundsStopsBeforeResolve(t *testing.T) {
	iss := &stubIssuer{
		txs: []issuer.UnsignedTx{{To: "0x0000000000000000000000000000000000000001", Value: "1"}},
	}
	signer := &stubSigner{errs: []error{fmt.Errorf("broadcast transaction: %w", wallet.ErrInsufficientFunds)}}
	wf := newTestWorkflow(iss, signer, nil)

	_, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "1")})
	if !errors.Is(err, wallet.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds error, got %v", err)
	}
	if iss.resolveCalls != 0 {
		t.Fatal("link requested despite failed broadcast")
	}
}

func TestCreateLinkRejectsMalformedTxValue(t *testing.T) {
	iss := &stubIssuer{
		txs: []issuer.UnsignedTx{{To: "0x0000000000000000000000000000000000000001", Value: "not-a-number"}},
	}
	signer := &stubSigner{}
	wf := newTestWorkflow(iss, signer, nil)

	_, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "1")})
	if !errors.Is(err, ErrSigningFailed) {
		t.Fatalf("expected ErrSigningFailed, got %v", err)
	}
	if len(signer.calls) != 0 {
		t.Fatal("malformed value reached the signer")
	}
}

func TestCreateLinkResolutionFailureKeepsBroadcastHashesInJournal(t *testing.T) {
	iss := &stubIssuer{
		txs: []issuer.UnsignedTx{
			{To: "0x0000000000000000000000000000000000000001", Value: "1"},
			{To: "0x0000000000000000000000000000000000000002", Value: "2"},
		},
		resolveErr: errors.New("issuer is down"),
	}
	signer := &stubSigner{hashes: []string{"0xaa", "0xbb"}}
	store := &recordingStore{MemoryStore: journal.NewMemoryStore()}
	wf := newTestWorkflow(iss, signer, store)

	_, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "3")})
	if !errors.Is(err, ErrLinkResolutionFailed) {
		t.Fatalf("expected ErrLinkResolutionFailed, got %v", err)
	}

	final := store.last
	if final.State != journal.StateFailed {
		t.Fatalf("expected failed journal state, got %s", final.State)
	}
	if len(final.TxHashes) != 2 || final.TxHashes[1] != "0xbb" {
		t.Fatalf("journal lost broadcast hashes: %+v", final)
	}
	if final.Submitted != 2 || final.Total != 2 {
		t.Fatalf("unexpected journal progress: %+v", final)
	}
}

func TestCreateLinkJournalReachesDone(t *testing.T) {
	iss := &stubIssuer{
		txs:  []issuer.UnsignedTx{{To: "0x0000000000000000000000000000000000000001", Value: "1"}},
		link: "https://peanut.to/claim?c=1&v=ok",
	}
	store := &recordingStore{MemoryStore: journal.NewMemoryStore()}
	wf := newTestWorkflow(iss, &stubSigner{hashes: []string{"0xcc"}}, store)

	if _, err := wf.CreateLink(context.Background(), LinkRequest{Amount: amount(t, "1")}); err != nil {
		t.Fatalf("create link: %v", err)
	}

	final := store.last
	if final.State != journal.StateDone || final.Link == "" {
		t.Fatalf("unexpected final journal row: %+v", final)
	}

	wantStates := []journal.State{
		journal.StatePreparing,
		journal.StateSubmitting,
		journal.StateSubmitting,
		journal.StateResolving,
		journal.StateDone,
	}
	if len(store.states) != len(wantStates) {
		t.Fatalf("unexpected transitions: %v", store.states)
	}
	for i, want := range wantStates {
		if store.states[i] != want {
			t.Fatalf("transition %d = %s, want %s", i, store.states[i], want)
		}
	}
}

// recordingStore captures every journal transition in order.
type recordingStore struct {
	*journal.MemoryStore
	states []journal.State
	last   journal.Record
}

func (r *recordingStore) Save(ctx context.Context, rec journal.Record) error {
	r.states = append(r.states, rec.State)
	r.last = rec
	return r.MemoryStore.Save(ctx, rec)
}
