package modification

import (
	"errors"
	"fmt"
	"strconv"
)

// trimSlack absorbs floating-point drift between probed durations and
// user-supplied trim ranges.
const trimSlack = 0.1

// ErrInvalidModification is returned when a user-supplied modification is
// out of bounds for the source it applies to.
var ErrInvalidModification = errors.New("invalid modification")

// ActionType identifies one kind of non-destructive modification.
type ActionType string

const (
	// ActionCrop insets the visible region of a visual source.
	ActionCrop ActionType = "crop"
	// ActionTrim cuts a time range out of an audio or video source.
	ActionTrim ActionType = "trim"
)

// Action is one user-supplied modification instruction.
type Action struct {
	Type ActionType `json:"type"`
	Crop *Crop      `json:"crop,omitempty"`
	Trim *TrimRange `json:"trim,omitempty"`
}

// Crop describes pixel insets from each edge of the source frame.
type Crop struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// IsZero reports whether the crop leaves the frame untouched.
func (c Crop) IsZero() bool {
	return c.Left == 0 && c.Top == 0 && c.Right == 0 && c.Bottom == 0
}

// TrimRange is the raw trim instruction as supplied by the user.
type TrimRange struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Trim is the normalized trim decision for a pipeline run.
type Trim struct {
	NeedsTrim bool
	Start     float64
	Duration  float64
}

// ExtractCrop returns the crop region from a list of actions, or ok=false
// when no crop is requested. When multiple crop actions are present the last
// one wins; this is a documented edge case, not an error.
func ExtractCrop(actions []Action) (Crop, bool) {
	var crop Crop
	found := false
	for _, a := range actions {
		if a.Type == ActionCrop && a.Crop != nil {
			crop = *a.Crop
			found = true
		}
	}
	return crop, found
}

// ExtractTrim returns the trim decision from a list of actions. Absent trim
// actions yield the no-op default. Last-write-wins, matching ExtractCrop.
func ExtractTrim(actions []Action) Trim {
	var trim Trim
	for _, a := range actions {
		if a.Type == ActionTrim && a.Trim != nil {
			trim = Trim{
				NeedsTrim: true,
				Start:     a.Trim.Start,
				Duration:  a.Trim.Duration,
			}
		}
	}
	return trim
}

// ValidateCrop checks a crop region against the source dimensions.
func ValidateCrop(crop Crop, width, height int) error {
	if crop.Left < 0 || crop.Top < 0 || crop.Right < 0 || crop.Bottom < 0 {
		return fmt.Errorf("%w: crop insets must not be negative", ErrInvalidModification)
	}
	if crop.Left+crop.Right >= width {
		return fmt.Errorf("%w: horizontal crop %d+%d leaves no width of %d", ErrInvalidModification, crop.Left, crop.Right, width)
	}
	if crop.Top+crop.Bottom >= height {
		return fmt.Errorf("%w: vertical crop %d+%d leaves no height of %d", ErrInvalidModification, crop.Top, crop.Bottom, height)
	}
	return nil
}

// ValidateTrim checks a trim decision against the probed source duration.
// A no-op trim always validates.
func ValidateTrim(trim Trim, sourceDuration float64) error {
	if !trim.NeedsTrim {
		return nil
	}
	if trim.Start < 0 {
		return fmt.Errorf("%w: trim start %.3f is negative", ErrInvalidModification, trim.Start)
	}
	if trim.Duration <= 0 {
		return fmt.Errorf("%w: trim duration %.3f is not positive", ErrInvalidModification, trim.Duration)
	}
	if trim.Start+trim.Duration > sourceDuration+trimSlack {
		return fmt.Errorf("%w: trim end %.3f exceeds source duration %.3f", ErrInvalidModification, trim.Start+trim.Duration, sourceDuration)
	}
	return nil
}

// TrimInputOptions produces the seek/duration argument pair for a trim,
// as input-side options. The seek must happen before decode, not after the
// filter graph, or trims combined with filters cut the wrong range.
func TrimInputOptions(trim Trim) []string {
	if !trim.NeedsTrim {
		return nil
	}
	return []string{
		"-ss", strconv.FormatFloat(trim.Start, 'f', 3, 64),
		"-t", strconv.FormatFloat(trim.Duration, 'f', 3, 64),
	}
}
