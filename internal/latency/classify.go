package latency

import (
	"fmt"
	"math"

	"github.com/jandubois/multiping/internal/probe"
)

// Thresholds are the warning and critical latency limits in seconds.
type Thresholds struct {
	Warning  float64
	Critical float64
}

// Validate rejects negative or non-finite limits and a warning limit above
// the critical one.
func (th Thresholds) Validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{{"warning", th.Warning}, {"critical", th.Critical}} {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%s threshold must be a finite number", v.name)
		}
		if v.value < 0 {
			return fmt.Errorf("%s threshold must not be negative: %v", v.name, v.value)
		}
	}
	if th.Warning > th.Critical {
		return fmt.Errorf("warning threshold %v exceeds critical threshold %v", th.Warning, th.Critical)
	}
	return nil
}

// Condition tells apart the ways a classification came about.
type Condition int

const (
	// ConditionMeasured means at least one target produced a latency.
	ConditionMeasured Condition = iota
	// ConditionNoTargets means there was nothing to probe.
	ConditionNoTargets
	// ConditionNoData means targets were probed but none replied.
	ConditionNoData
)

func (c Condition) String() string {
	switch c {
	case ConditionMeasured:
		return "measured"
	case ConditionNoTargets:
		return "no targets"
	case ConditionNoData:
		return "no data"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// Verdict is the classification of a ResultSet. Best and Index are only
// meaningful for ConditionMeasured; Index is the first target holding Best.
type Verdict struct {
	Status    probe.Status
	Condition Condition
	Best      float64
	Index     int
}

// Check maps a single latency to a status. NaN maps to unknown. A negative
// latency is a caller bug and panics.
func Check(v float64, th Thresholds) probe.Status {
	if v < 0 {
		panic(fmt.Sprintf("latency: Check not defined for negative values: %v", v))
	}
	switch {
	case v > th.Critical:
		return probe.StatusCritical
	case v > th.Warning:
		return probe.StatusWarning
	case v <= th.Warning:
		return probe.StatusOK
	default:
		return probe.StatusUnknown
	}
}

// Classify picks the lowest defined latency across rs and maps it to a
// status. NaN values are never selected.
func Classify(rs ResultSet, th Thresholds) Verdict {
	if len(rs) == 0 {
		return Verdict{Status: probe.StatusUnknown, Condition: ConditionNoTargets, Index: -1}
	}

	best, index := math.Inf(1), -1
	for i, s := range rs {
		v, ok := s.Best.Value()
		if !ok || math.IsNaN(v) {
			continue
		}
		if v < 0 {
			panic(fmt.Sprintf("latency: negative latency %v for target %d", v, i))
		}
		if index < 0 || v < best {
			best, index = v, i
		}
	}

	if index < 0 {
		return Verdict{Status: probe.StatusCritical, Condition: ConditionNoData, Index: -1}
	}
	return Verdict{
		Status:    Check(best, th),
		Condition: ConditionMeasured,
		Best:      best,
		Index:     index,
	}
}
