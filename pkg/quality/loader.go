package quality

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/machshop/enforcement/pkg/enforcement"
)

// RuleFile is the on-disk format for administered quality rules.
type RuleFile struct {
	DispositionRules      []DispositionRule      `yaml:"disposition_rules"`
	SignatureRequirements []SignatureRequirement `yaml:"signature_requirements"`
}

type sigKey struct {
	actionType string
	siteID     string
}

// RuleLoader loads NCR disposition rules and electronic-signature
// requirements from a YAML file and serves them in memory. It implements
// DispositionRuleSource and SignatureRuleSource, optionally reloading the
// file when it changes on disk.
type RuleLoader struct {
	mu         sync.RWMutex
	path       string
	logger     zerolog.Logger
	validate   *validator.Validate
	watcher    *fsnotify.Watcher
	rules      map[Severity]*DispositionRule
	signatures map[sigKey]*SignatureRequirement
}

// NewRuleLoader creates a rule loader for the given file path.
func NewRuleLoader(path string, logger zerolog.Logger) *RuleLoader {
	return &RuleLoader{
		path:       path,
		logger:     logger.With().Str("component", "quality-rule-loader").Logger(),
		validate:   validator.New(),
		rules:      make(map[Severity]*DispositionRule),
		signatures: make(map[sigKey]*SignatureRequirement),
	}
}

// Load reads and validates the rule file, replacing the in-memory rule set.
func (l *RuleLoader) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return enforcement.NewTransientError("failed to read quality rule file", err)
	}

	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return enforcement.NewPermanentError("failed to parse quality rule file", err).
			WithCode(enforcement.ErrCodeValidation)
	}

	rules := make(map[Severity]*DispositionRule, len(file.DispositionRules))
	for i := range file.DispositionRules {
		rule := file.DispositionRules[i]
		if err := l.validate.Struct(rule); err != nil {
			return enforcement.NewPermanentError(
				fmt.Sprintf("invalid disposition rule for severity %s", rule.Severity), err).
				WithCode(enforcement.ErrCodeValidation)
		}
		rules[rule.Severity] = &rule
	}

	signatures := make(map[sigKey]*SignatureRequirement, len(file.SignatureRequirements))
	for i := range file.SignatureRequirements {
		req := file.SignatureRequirements[i]
		if err := l.validate.Struct(req); err != nil {
			return enforcement.NewPermanentError(
				fmt.Sprintf("invalid signature requirement for action %s", req.ActionType), err).
				WithCode(enforcement.ErrCodeValidation)
		}
		signatures[sigKey{req.ActionType, req.SiteID}] = &req
	}

	l.mu.Lock()
	l.rules = rules
	l.signatures = signatures
	l.mu.Unlock()

	l.logger.Info().
		Int("disposition_rules", len(rules)).
		Int("signature_requirements", len(signatures)).
		Msg("Quality rules loaded")

	return nil
}

// Watch reloads the rule file whenever it is written or recreated. It
// returns after starting the watch goroutine, which stops when ctx is done.
func (l *RuleLoader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return enforcement.NewTransientError("failed to create rule file watcher", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		_ = watcher.Close()
		return enforcement.NewTransientError("failed to watch rule file directory", err)
	}
	l.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !strings.EqualFold(filepath.Clean(event.Name), filepath.Clean(l.path)) {
					continue
				}
				l.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Rule file changed")
				if err := l.Load(); err != nil {
					// Keep serving the previous rule set on a bad reload.
					l.logger.Error().Err(err).Msg("Failed to reload quality rules")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error().Err(err).Msg("Rule file watcher error")
			}
		}
	}()

	return nil
}

// GetDispositionRule returns the configured rule for a severity, or
// (nil, nil) when none is configured.
func (l *RuleLoader) GetDispositionRule(_ context.Context, severity Severity) (*DispositionRule, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rules[severity], nil
}

// GetSignatureRequirement returns the requirement row for the exact
// (actionType, siteID) key, or (nil, nil) when none exists.
func (l *RuleLoader) GetSignatureRequirement(_ context.Context, actionType, siteID string) (*SignatureRequirement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.signatures[sigKey{actionType, siteID}], nil
}
