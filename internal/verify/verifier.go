package verify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/witnz/landledger/internal/ledger"
)

// Checker runs one whole-chain validation.
type Checker interface {
	Integrity(ctx context.Context) ledger.ValidationResult
}

// ChainVerifier validates the ledger once on Start and then every interval.
type ChainVerifier struct {
	checker  Checker
	interval time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	last *ledger.ValidationResult

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewChainVerifier returns a verifier. An interval of zero runs only the
// startup check.
func NewChainVerifier(checker Checker, interval time.Duration, logger *slog.Logger) *ChainVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainVerifier{
		checker:  checker,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (v *ChainVerifier) Start(ctx context.Context) {
	v.logger.Info("Running startup ledger verification")
	if err := v.VerifyOnce(ctx); err != nil {
		v.logger.Warn("Startup verification failed", "error", err)
	}

	if v.interval > 0 {
		v.wg.Add(1)
		go v.runPeriodicVerification(ctx)
	}
}

func (v *ChainVerifier) Stop() {
	v.stopOnce.Do(func() { close(v.stopCh) })
	v.wg.Wait()
}

func (v *ChainVerifier) runPeriodicVerification(ctx context.Context) {
	defer v.wg.Done()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.VerifyOnce(ctx); err != nil {
				v.logger.Error("Periodic verification failed", "error", err)
			}
		}
	}
}

// VerifyOnce validates the chain and returns a *ledger.CorruptionError if it
// is corrupted.
func (v *ChainVerifier) VerifyOnce(ctx context.Context) error {
	result := v.checker.Integrity(ctx)

	v.mu.Lock()
	v.last = &result
	v.mu.Unlock()

	if err := result.Err(); err != nil {
		return err
	}
	v.logger.Debug("Ledger verified", "length", result.Length)
	return nil
}

// LastResult returns the most recent validation result, if any has run.
func (v *ChainVerifier) LastResult() (ledger.ValidationResult, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.last == nil {
		return ledger.ValidationResult{}, false
	}
	return *v.last, true
}
