package linker

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"linkrails/internal/issuer"
	"linkrails/internal/journal"
	"linkrails/internal/wallet"
)

// Signer is the slice of the custody wallet the workflow needs.
type Signer interface {
	SignAndSend(ctx context.Context, tx issuer.UnsignedTx) (string, error)
	Address() string
}

// Workflow orchestrates one payment-link issuance: validate, convert,
// prepare, sign-and-broadcast in order, resolve the claim link.
type Workflow struct {
	issuer        issuer.Client
	signer        Signer
	journal       journal.Store
	chainID       int64
	tokenDecimals int
	log           *logrus.Entry
}

func NewWorkflow(iss issuer.Client, signer Signer, store journal.Store, chainID int64, tokenDecimals int, log *logrus.Logger) *Workflow {
	return &Workflow{
		issuer:        iss,
		signer:        signer,
		journal:       store,
		chainID:       chainID,
		tokenDecimals: tokenDecimals,
		log:           log.WithField("component", "workflow"),
	}
}

// CreateLink runs the issuance workflow. Once the first transaction is
// broadcast nothing is rolled back on failure; every state transition is
// journaled with the hashes committed so far, so a partially submitted
// request can be recovered by an operator.
func (w *Workflow) CreateLink(ctx context.Context, req LinkRequest) (IssuanceResult, error) {
	if req.Amount.Sign() <= 0 {
		return IssuanceResult{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidAmount, req.Amount)
	}
	if !req.TokenType.Valid() {
		return IssuanceResult{}, fmt.Errorf("%w: %d", ErrInvalidTokenType, req.TokenType)
	}

	tokenAmount, err := ToBaseUnits(req.Amount, w.tokenDecimals)
	if err != nil {
		return IssuanceResult{}, err
	}

	details := LinkDetails{
		ChainID:       w.chainID,
		TokenAmount:   tokenAmount,
		TokenType:     req.TokenType,
		TokenDecimals: w.tokenDecimals,
	}

	secret, err := newDepositSecret()
	if err != nil {
		return IssuanceResult{}, err
	}
	secrets := []string{secret}

	id := uuid.NewString()
	log := w.log.WithField("request_id", id)
	rec := journal.Record{
		ID:        id,
		State:     journal.StatePreparing,
		CreatedAt: time.Now().UTC(),
	}
	w.saveJournal(ctx, log, rec)

	unsigned, err := w.issuer.Prepare(ctx, issuer.PrepareRequest{
		Address:       w.signer.Address(),
		ChainID:       details.ChainID,
		TokenAmount:   details.TokenAmount.String(),
		TokenType:     int(details.TokenType),
		TokenDecimals: details.TokenDecimals,
		Secrets:       secrets,
	})
	if err != nil {
		w.failJournal(ctx, log, rec, err)
		return IssuanceResult{}, fmt.Errorf("%w: %w", ErrPreparationFailed, err)
	}
	if len(unsigned) == 0 {
		err := fmt.Errorf("%w: issuer returned no transactions", ErrPreparationFailed)
		w.failJournal(ctx, log, rec, err)
		return IssuanceResult{}, err
	}

	// Transactions are submitted strictly in order: the wallet's nonce
	// sequence matters and later deposits may build on earlier ones.
	rec.Total = len(unsigned)
	txHashes := make([]string, 0, len(unsigned))
	for i, utx := range unsigned {
		if err := validateTxValue(utx.Value); err != nil {
			w.failJournal(ctx, log, rec, err)
			return IssuanceResult{}, fmt.Errorf("%w: transaction %d/%d: %w", ErrSigningFailed, i+1, len(unsigned), err)
		}

		rec.State = journal.StateSubmitting
		rec.Submitted = i
		w.saveJournal(ctx, log, rec)

		hash, err := w.signer.SignAndSend(ctx, utx)
		if err != nil {
			w.failJournal(ctx, log, rec, err)
			if errors.Is(err, wallet.ErrInsufficientFunds) {
				return IssuanceResult{}, fmt.Errorf("sign transaction %d/%d: %w", i+1, len(unsigned), err)
			}
			return IssuanceResult{}, fmt.Errorf("%w: transaction %d/%d: %w", ErrSigningFailed, i+1, len(unsigned), err)
		}

		txHashes = append(txHashes, hash)
		rec.Submitted = i + 1
		rec.TxHashes = txHashes
		w.saveJournal(ctx, log, rec)
		log.WithFields(logrus.Fields{"tx_hash": hash, "position": i + 1, "total": len(unsigned)}).Info("deposit transaction broadcast")
	}

	rec.State = journal.StateResolving
	w.saveJournal(ctx, log, rec)

	// The issuer anchors the claim to the final transaction.
	lastHash := txHashes[len(txHashes)-1]
	link, err := w.issuer.ResolveLink(ctx, issuer.ResolveRequest{
		ChainID:       details.ChainID,
		TokenAmount:   details.TokenAmount.String(),
		TokenType:     int(details.TokenType),
		TokenDecimals: details.TokenDecimals,
		Secrets:       secrets,
		TxHash:        lastHash,
	})
	if err != nil {
		w.failJournal(ctx, log, rec, err)
		return IssuanceResult{}, fmt.Errorf("%w: %w", ErrLinkResolutionFailed, err)
	}
	if link == "" {
		err := fmt.Errorf("%w: issuer returned empty link", ErrLinkResolutionFailed)
		w.failJournal(ctx, log, rec, err)
		return IssuanceResult{}, err
	}

	rec.State = journal.StateDone
	rec.Link = link
	w.saveJournal(ctx, log, rec)
	log.WithFields(logrus.Fields{"transactions": len(txHashes)}).Info("claim link issued")

	return IssuanceResult{Link: link, TxHashes: txHashes}, nil
}

func validateTxValue(value string) error {
	if value == "" {
		return nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return fmt.Errorf("invalid transaction value: %q", value)
	}
	if parsed.Sign() < 0 {
		return fmt.Errorf("negative transaction value: %q", value)
	}
	return nil
}

// Journal writes are best effort: the journal observes the workflow, it
// must not abort a request that is already moving funds.
func (w *Workflow) saveJournal(ctx context.Context, log *logrus.Entry, rec journal.Record) {
	rec.UpdatedAt = time.Now().UTC()
	if err := w.journal.Save(ctx, rec); err != nil {
		log.WithError(err).WithField("state", rec.State).Warn("journal write failed")
	}
}

func (w *Workflow) failJournal(ctx context.Context, log *logrus.Entry, rec journal.Record, cause error) {
	rec.State = journal.StateFailed
	rec.Failure = cause.Error()
	w.saveJournal(ctx, log, rec)
	log.WithError(cause).WithFields(logrus.Fields{
		"submitted": rec.Submitted,
		"total":     rec.Total,
		"tx_hashes": rec.TxHashes,
	}).Error("link issuance failed")
}
