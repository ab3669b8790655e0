// Package fit shrinks typography until measured content fits its area.
//
// The controller never touches a rendering surface directly. It talks to the
// surface through two collaborators: a MeasureFunc reporting the current
// overflow and an ApplyFunc pushing new parameters. Callers alternate them
// strictly, measure → apply → measure, from a single goroutine.
package fit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// Defaults used when Limits leaves a field at zero via DefaultLimits.
const (
	DefaultStep           = 0.5
	DefaultLineHeightStep = 0.02
	DefaultMaxIterations  = 50

	// MinStep 是参数按两位小数取整后仍能前进的最小步长。
	MinStep = 0.01
)

// ErrInvalidLimits marks configuration errors detected before the loop starts.
var ErrInvalidLimits = errors.New("fit: invalid limits")

// Params is the typography state owned by one run.
type Params struct {
	FontSize   float64 `json:"fontSize"`   // pt
	LineHeight float64 `json:"lineHeight"` // unitless ratio
}

// Limits is the immutable configuration of one run.
type Limits struct {
	FontMin        float64 `json:"fontMin"`
	LineHeightMin  float64 `json:"lineHeightMin"`
	Step           float64 `json:"step"`
	LineHeightStep float64 `json:"lineHeightStep"`
	MaxIterations  int     `json:"maxIterations"`
}

// DefaultLimits returns limits with the standard step sizes and iteration cap.
func DefaultLimits(fontMin, lineHeightMin float64) Limits {
	return Limits{
		FontMin:        fontMin,
		LineHeightMin:  lineHeightMin,
		Step:           DefaultStep,
		LineHeightStep: DefaultLineHeightStep,
		MaxIterations:  DefaultMaxIterations,
	}
}

// Validate reports configuration errors that would make the loop unsafe.
func (l Limits) Validate() error {
	switch {
	case !(l.Step >= MinStep):
		return fmt.Errorf("%w: step must be at least %g, got %g", ErrInvalidLimits, MinStep, l.Step)
	case !(l.LineHeightStep >= MinStep):
		return fmt.Errorf("%w: line height step must be at least %g, got %g", ErrInvalidLimits, MinStep, l.LineHeightStep)
	case l.MaxIterations <= 0:
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrInvalidLimits, l.MaxIterations)
	case math.IsNaN(l.FontMin) || math.IsNaN(l.LineHeightMin):
		return fmt.Errorf("%w: floors must be numbers", ErrInvalidLimits)
	}
	return nil
}

// Overflow is content height minus available height. Positive means the
// content does not fit.
type Overflow float64

// MeasureFunc reports the overflow for the most recently applied parameters.
type MeasureFunc func() (Overflow, error)

// ApplyFunc pushes a parameter set to the rendering surface.
type ApplyFunc func(Params) error

// Outcome is the terminal signal of a run.
type Outcome int

const (
	OutcomeFit Outcome = iota
	OutcomeFitAtMinimum
	OutcomeExceededIterations
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFit:
		return "fit"
	case OutcomeFitAtMinimum:
		return "fit-at-minimum"
	case OutcomeExceededIterations:
		return "exceeded-iterations"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText lets outcomes appear by name in debug JSON.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// State is a node of the run's state machine.
type State int

const (
	StateMeasuring State = iota
	StateShrinking
	StateDoneFit
	StateDoneAtMinimum
	StateDoneExceeded
)

func (s State) String() string {
	switch s {
	case StateMeasuring:
		return "measuring"
	case StateShrinking:
		return "shrinking"
	case StateDoneFit:
		return "done-fit"
	case StateDoneAtMinimum:
		return "done-at-minimum"
	case StateDoneExceeded:
		return "done-exceeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDoneFit || s == StateDoneAtMinimum || s == StateDoneExceeded
}

// Result summarises a finished run.
type Result struct {
	Outcome    Outcome  `json:"outcome"`
	State      State    `json:"-"`
	Start      Params   `json:"start"`
	Final      Params   `json:"final"`
	Overflow   Overflow `json:"overflow"`
	Iterations int      `json:"iterations"`
	Applies    int      `json:"applies"`
}

// Controller runs the bounded shrink loop. The zero value is not usable;
// build one with NewController.
type Controller struct {
	limits Limits
	logger *slog.Logger
	// observe, when set, sees every state the run enters.
	observe func(State, Params)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger routes loop diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a callback invoked on every state transition.
func WithObserver(fn func(State, Params)) Option {
	return func(c *Controller) { c.observe = fn }
}

// NewController validates limits and returns a controller for them.
func NewController(limits Limits, opts ...Option) (*Controller, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{limits: limits, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run is shorthand for NewController(limits).Run(params, measure, apply).
func Run(params Params, limits Limits, measure MeasureFunc, apply ApplyFunc) (Result, error) {
	c, err := NewController(limits)
	if err != nil {
		return Result{}, err
	}
	return c.Run(params, measure, apply)
}

// Run drives the greedy descent: font size first, line height second.
// Errors from the collaborators abort the run and are returned as is.
func (c *Controller) Run(params Params, measure MeasureFunc, apply ApplyFunc) (Result, error) {
	if measure == nil || apply == nil {
		return Result{}, fmt.Errorf("%w: measure and apply are required", ErrInvalidLimits)
	}
	if !(params.FontSize > 0) || !(params.LineHeight > 0) {
		return Result{}, fmt.Errorf("%w: start params must be positive, got %+v", ErrInvalidLimits, params)
	}

	lim := c.limits
	res := Result{Start: params}
	cur := params
	for {
		c.enter(StateMeasuring, cur)
		over, err := measure()
		if err != nil {
			return res, fmt.Errorf("measure: %w", err)
		}
		res.Overflow = over
		res.Final = cur

		if over <= 0 {
			return c.finish(res, StateDoneFit, OutcomeFit), nil
		}
		next, ok := shrink(cur, lim)
		if !ok {
			return c.finish(res, StateDoneAtMinimum, OutcomeFitAtMinimum), nil
		}
		if res.Iterations >= lim.MaxIterations {
			return c.finish(res, StateDoneExceeded, OutcomeExceededIterations), nil
		}

		c.enter(StateShrinking, next)
		if err := apply(next); err != nil {
			return res, fmt.Errorf("apply %+v: %w", next, err)
		}
		cur = next
		res.Final = cur
		res.Iterations++
		res.Applies++
	}
}

// shrink returns the next parameter set, or false when neither parameter has
// headroom left.
func shrink(p Params, lim Limits) (Params, bool) {
	if p.FontSize > lim.FontMin {
		p.FontSize = math.Max(round2(p.FontSize-lim.Step), lim.FontMin)
		return p, true
	}
	if p.LineHeight > lim.LineHeightMin {
		p.LineHeight = math.Max(round2(p.LineHeight-lim.LineHeightStep), lim.LineHeightMin)
		return p, true
	}
	return p, false
}

// round2 rounds to two decimals so repeated subtraction lands exactly on
// the floors.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (c *Controller) enter(s State, p Params) {
	if c.observe != nil {
		c.observe(s, p)
	}
}

func (c *Controller) finish(res Result, s State, o Outcome) Result {
	res.State = s
	res.Outcome = o
	c.enter(s, res.Final)
	args := []any{
		"outcome", o.String(),
		"font_pt", res.Final.FontSize,
		"line_height", res.Final.LineHeight,
		"overflow", float64(res.Overflow),
		"applies", res.Applies,
	}
	if o == OutcomeFit {
		c.logger.Debug("content fits", args...)
	} else {
		c.logger.Warn("content does not fit at minimum typography", args...)
	}
	return res
}
