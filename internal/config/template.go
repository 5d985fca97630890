package config

import (
	"fmt"

	"github.com/verte-zerg/emgscore/internal/scoring"
)

// DefaultTemplate returns the commented config written by `emgscore config`.
// Every value is commented out so the template decodes to an empty config.
func DefaultTemplate() string {
	w := scoring.DefaultWeights()
	return fmt.Sprintf(`# emgscore configuration
# Uncomment a value to enable it. CLI flags override config values.
# Units are part of each key name: -ms is milliseconds, -s is seconds.

[scoring]
# Top-level weights must sum to 1.0 (tolerance 0.01).
# compliance = %.2f
# symmetry = %.2f
# effort = %.2f
# game-score = %.2f
# Compliance sub-weights must also sum to 1.0.
# completion = %.3f
# intensity = %.3f
# duration = %.3f

[thresholds]
# mvc = 0.5                       # Session-wide MVC amplitude (signal units)
# mvc-pct = %.0f                   # Percentage of MVC a contraction must reach
# duration-threshold-ms = %.0f   # Minimum contraction length
# expected-contractions = %d      # Target per muscle
# fallback-amplitude = 0.3        # Used when no MVC calibration exists

# [channels.CH1]
# mvc = 0.62
# mvc-pct = 70
# duration-threshold-s = 2.5
# expected-contractions = 12

[game]
# min-points = %.0f
# max-points = %.0f

[safety]
# BFR cuff pressure as %% of arterial occlusion pressure.
# min-aop-pct = %.0f
# max-aop-pct = %.0f

[effort]
# Effort score for post-session RPE 0..10, one entry per rating.
# scores = [20, 20, 60, 80, 100, 100, 100, 80, 60, 20, 20]

[session]
# left-channel = "CH1"
# right-channel = "CH2"

[server]
# addr = %q
# allowed-origins = ["http://localhost:3000"]

[log]
# mode = %q                   # dev or prod
`,
		w.Compliance, w.Symmetry, w.Effort, w.GameScore,
		w.Completion, w.Intensity, w.Duration,
		scoring.DefaultMVCThresholdPercentage,
		scoring.DefaultDurationThresholdMs,
		DefaultExpectedContractions,
		DefaultGameScoreMin, DefaultGameScoreMax,
		scoring.DefaultBFRMinAOPPercent, scoring.DefaultBFRMaxAOPPercent,
		DefaultServerAddr,
		DefaultLogMode,
	)
}
