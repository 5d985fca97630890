package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/emgscore/internal/model"
)

// Reasons reported when bilateral scoring is impossible.
const (
	ReasonInsufficientChannels = "bilateral scoring requires two muscle channels"
	ReasonChannelsNotFound     = "configured left/right channels not found in session"
)

// PairChannels picks the left and right channels. When either name is
// configured both must be set, distinct and present; nothing is guessed.
// With no names configured the two smallest channel names in natural order
// are used (CH2 before CH10). The returned copies carry their map key as
// Channel. reason is empty on success.
func PairChannels(channels map[string]model.ChannelAnalytics, leftName, rightName string) (left, right *model.ChannelAnalytics, reason string) {
	if leftName != "" || rightName != "" {
		if leftName == "" || rightName == "" || leftName == rightName {
			return nil, nil, ReasonChannelsNotFound
		}
		l, lok := channels[leftName]
		r, rok := channels[rightName]
		if !lok || !rok {
			return nil, nil, ReasonChannelsNotFound
		}
		return withName(l, leftName), withName(r, rightName), ""
	}
	if len(channels) < 2 {
		return nil, nil, ReasonInsufficientChannels
	}
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	return withName(channels[names[0]], names[0]), withName(channels[names[1]], names[1]), ""
}

// naturalLess orders strings with digit runs compared by numeric value.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, restA := nextChunk(a)
		cb, restB := nextChunk(b)
		if ca != cb {
			if isDigit(ca[0]) && isDigit(cb[0]) {
				na, nb := strings.TrimLeft(ca, "0"), strings.TrimLeft(cb, "0")
				if len(na) != len(nb) {
					return len(na) < len(nb)
				}
				if na != nb {
					return na < nb
				}
				return len(ca) < len(cb)
			}
			return ca < cb
		}
		a, b = restA, restB
	}
	return len(a) < len(b)
}

func nextChunk(s string) (chunk, rest string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func withName(ch model.ChannelAnalytics, name string) *model.ChannelAnalytics {
	if ch.Channel == "" {
		ch.Channel = name
	}
	return &ch
}

// Score pairs the input channels and scores the session.
func Score(in model.SessionInput, cfg model.SessionConfiguration, effort EffortFunc) model.SessionScore {
	left, right, reason := PairChannels(in.Channels, cfg.LeftChannel, cfg.RightChannel)
	if reason != "" {
		return model.SessionScore{Reason: reason}
	}
	return ScoreSession(left, right, in, cfg, effort)
}

// ScoreSession computes the overall weighted score for a bilateral session.
// A nil channel yields an unavailable result. A nil effort uses
// DefaultEffortScore. Pre-session RPE is never scored. Without a post-session
// RPE the effort component is 0 but its weight stays in the sum, so the
// overall score cannot exceed 100 minus the effort weight (80 with the
// default weights).
func ScoreSession(left, right *model.ChannelAnalytics, in model.SessionInput, cfg model.SessionConfiguration, effort EffortFunc) model.SessionScore {
	if left == nil || right == nil {
		return model.SessionScore{Reason: ReasonInsufficientChannels}
	}
	if effort == nil {
		effort = DefaultEffortScore
	}

	l := scoreChannel(*left, cfg)
	r := scoreChannel(*right, cfg)

	out := model.SessionScore{
		Available:            true,
		LeftMuscle:           l,
		RightMuscle:          r,
		ComplianceScore:      (float64(l.TotalScore) + float64(r.TotalScore)) / 2,
		SymmetryScore:        SymmetryScore(float64(l.TotalScore), float64(r.TotalScore)),
		SafetyGateMultiplier: SafetyGate(in.BFRLeft, in.BFRRight, cfg),
		GameScoreNormalized:  NormalizeGameScore(in.GamePoints, cfg.GameScoreMin, cfg.GameScoreMax),
	}
	if in.PostSessionRPE != nil {
		out.EffortScore = clamp(effort(*in.PostSessionRPE), 0, 100)
		out.EffortAvailable = true
	}

	w := cfg.Weights
	raw := w.Compliance*out.ComplianceScore +
		w.Symmetry*out.SymmetryScore +
		w.Effort*out.EffortScore +
		w.GameScore*out.GameScoreNormalized
	overall := math.Round(raw) * out.SafetyGateMultiplier
	out.OverallScore = int(clamp(overall, 0, 100))
	return out
}

func scoreChannel(ch model.ChannelAnalytics, cfg model.SessionConfiguration) model.MuscleScore {
	th := ResolveThresholds(ch.Channel, cfg, ch)
	return AggregateMuscle(ch, ExpectedContractions(ch.Channel, cfg), th, cfg.Weights)
}

// SymmetryScore is the asymmetry-index form (1 - |L-R|/(L+R)) * 100.
// Two zero scores are perfectly symmetric.
func SymmetryScore(left, right float64) float64 {
	sum := left + right
	if sum <= 0 {
		return 100
	}
	return clamp((1-math.Abs(left-right)/sum)*100, 0, 100)
}
