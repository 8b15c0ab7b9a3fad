package config

// Default returns the runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Translation: TranslationConfig{
			Endpoint:  "https://api.mymemory.translated.net/get",
			TimeoutMS: 10000,
		},
		Detection: DetectionConfig{
			Classifier:      "lingua",
			MinLength:       2,
			ShortTextLength: 20,
			EnglishRatio:    0.4,
			Confidence: ConfidenceConfig{
				ShortNonLatin:   75,
				ShortEnglish:    85,
				LatinFallback:   60,
				EnglishOverride: 80,
			},
			MaxCandidates: 5,
		},
		Session: SessionConfig{
			DebounceMS:    300,
			MinLength:     3,
			DefaultTarget: "es",
		},
		RivaGRPC:       "127.0.0.1:50051",
		RivaHTTP:       "127.0.0.1:9000",
		RivaHealthPath: "/v1/health/ready",
		ASR: ASRConfig{
			AutomaticPunctuation: true,
			LanguageCode:         "en-US",
			PhraseBoost:          10,
		},
		TTS: TTSConfig{
			Enable:     true,
			SampleRate: 22050,
			Rate:       1,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "voxlate",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Server: ServerConfig{Listen: "127.0.0.1:8787"},
	}
}
