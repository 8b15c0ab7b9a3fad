package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/voxlate/internal/catalog"
	"github.com/rbright/voxlate/internal/config"
	"github.com/rbright/voxlate/internal/indicator"
	"github.com/rbright/voxlate/internal/langid"
	"github.com/rbright/voxlate/internal/listen"
	"github.com/rbright/voxlate/internal/output"
	"github.com/rbright/voxlate/internal/session"
	"github.com/rbright/voxlate/internal/speech"
	"github.com/rbright/voxlate/internal/translate"
)

// services holds the collaborators built from one loaded config.
type services struct {
	cfg        config.Config
	logger     *slog.Logger
	identifier *langid.Identifier
	translator *translate.Client
	clipboard  *output.Clipboard
	indicator  *indicator.Notifier
}

func newServices(cfg config.Config, logger *slog.Logger) *services {
	return &services{
		cfg:        cfg,
		logger:     logger,
		identifier: langid.New(newClassifier(cfg.Detection), detectionParams(cfg.Detection), logger),
		translator: translate.New(translate.Options{
			Endpoint: cfg.Translation.Endpoint,
			Timeout:  time.Duration(cfg.Translation.TimeoutMS) * time.Millisecond,
			Email:    cfg.Translation.Email,
			Logger:   logger,
		}),
		clipboard: output.NewClipboard(cfg.Clipboard, logger),
		indicator: indicator.New(cfg.Indicator, logger),
	}
}

func newClassifier(cfg config.DetectionConfig) langid.Classifier {
	if strings.EqualFold(cfg.Classifier, "whatlang") {
		return langid.WhatlangClassifier{}
	}
	return langid.NewLinguaClassifier(catalog.Contains, false)
}

func detectionParams(cfg config.DetectionConfig) langid.Params {
	params := langid.DefaultParams()
	params.MinLength = cfg.MinLength
	params.ShortTextLength = cfg.ShortTextLength
	params.EnglishRatio = cfg.EnglishRatio
	params.MaxCandidates = cfg.MaxCandidates
	params.ShortNonLatinConfidence = cfg.Confidence.ShortNonLatin
	params.ShortEnglishConfidence = cfg.Confidence.ShortEnglish
	params.LatinFallbackConfidence = cfg.Confidence.LatinFallback
	params.EnglishOverrideConfidence = cfg.Confidence.EnglishOverride
	return params
}

// target resolves the --to flag against the configured default.
func (s *services) target(flag string) string {
	if strings.TrimSpace(flag) == "" {
		return s.cfg.Session.DefaultTarget
	}
	return catalog.Normalize(flag)
}

func (s *services) newSpeaker() *speech.Speaker {
	return speech.NewSpeaker(s.cfg, speech.SpeakerOptions{
		Logger: s.logger,
		OnEvent: func(event speech.Event) {
			fields := []any{"event", string(event.Kind), "language", event.Language, "voice", event.Voice}
			if event.Err != nil {
				s.logger.Warn("speech event", append(fields, "error", event.Err.Error())...)
				return
			}
			s.logger.Debug("speech event", fields...)
		},
	})
}

// newSession builds a coordinator. A nil speaker leaves speech unsupported.
func (s *services) newSession(id, target string, speaker session.Speaker) *session.Coordinator {
	opts := session.Options{
		ID:         id,
		Detector:   s.identifier,
		Translator: s.translator,
		Target:     target,
		Debounce:   time.Duration(s.cfg.Session.DebounceMS) * time.Millisecond,
		MinLength:  s.cfg.Session.MinLength,
		Logger:     s.logger,
	}
	if speaker != nil {
		opts.Speaker = speaker
	}
	if s.clipboard.Enabled() {
		opts.Clipboard = s.clipboard
	}
	return session.New(opts)
}

// newListener builds a listening controller that commits transcripts
// through commit. language overrides asr.language_code when set.
func (s *services) newListener(language string, commit listen.CommitFunc) *listen.Controller {
	var recognizer listen.Recognizer
	if strings.TrimSpace(s.cfg.RivaGRPC) != "" {
		recognizer = speech.NewRecognizer(s.cfg, language, s.logger)
	}
	return listen.NewController(s.logger, recognizer, commit, s.indicator)
}

// announce shows a finished translation on the desktop.
func (s *services) announce(ctx context.Context, state session.State) {
	if state.Translation == nil || state.Translation.Empty() {
		return
	}
	s.indicator.ShowTranslation(ctx, state.Translation.SourceCode, state.Translation.TargetCode, state.Translation.Text)
}
