package corruption

import (
	"fmt"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

// effectSpec is an entry of the effect catalog.
type effectSpec struct {
	kind     domain.EffectKind
	minLevel float64
	scale    float64
}

var catalog = []effectSpec{
	{domain.EffectPixelCorruption, 0.1, 1.0},
	{domain.EffectWidgetGlitch, 0.2, 0.8},
	{domain.EffectColorShift, 0.3, 0.6},
	{domain.EffectBackgroundDecay, 0.4, 0.9},
	{domain.EffectInterfaceDistortion, 0.6, 1.2},
	{domain.EffectSystemInstability, 0.8, 1.5},
}

var (
	pixelPatterns    = []string{"random", "clustered", "lines"}
	widgets          = []string{"clock", "weather", "music_player"}
	glitchTypes      = []string{"data_corruption", "display_error", "freeze"}
	palettes         = []string{"sick_yellow", "toxic_green", "corrupted_red", "dead_blue"}
	decayTypes       = []string{"fade", "tear", "pixelate"}
	decayPatterns    = []string{"edges", "center", "random"}
	distortionTypes  = []string{"wave", "stretch", "fragment"}
	interfaceAreas   = []string{"taskbar", "desktop", "windows", "widgets"}
	instabilityTypes = []string{"freeze", "flicker", "crash_warning"}
)

// chooser abstracts the random choices made while building effect parameters.
type chooser interface {
	IntN(n int) int
	Perm(n int) []int
}

// firstChoice always picks the first option; used for read-only descriptions.
type firstChoice struct{}

func (firstChoice) IntN(int) int { return 0 }

func (firstChoice) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

func available(level float64) []effectSpec {
	var out []effectSpec
	for _, spec := range catalog {
		if spec.minLevel <= level {
			out = append(out, spec)
		}
	}
	return out
}

func intensity(spec effectSpec, level float64) float64 {
	return clamp((level-spec.minLevel)*spec.scale, 0, 1)
}

func buildEffect(spec effectSpec, level float64, ch chooser) domain.Effect {
	i := intensity(spec, level)
	e := domain.Effect{Kind: spec.kind, Intensity: round3(i), Params: map[string]any{}}

	switch spec.kind {
	case domain.EffectPixelCorruption:
		e.Params["dead_pixel_count"] = int(i * 50)
		e.Params["color_shift_degree"] = round3(i * 30)
		e.Params["pattern"] = pick(ch, pixelPatterns)
		e.Description = fmt.Sprintf("%d dead pixels appear", int(i*50))
	case domain.EffectWidgetGlitch:
		affected := sample(ch, widgets, max(1, int(i*3)))
		e.Params["affected_widgets"] = affected
		e.Params["glitch_type"] = pick(ch, glitchTypes)
		e.Description = fmt.Sprintf("%d widgets start glitching", len(affected))
	case domain.EffectColorShift:
		palette := pick(ch, palettes)
		e.Params["target_palette"] = palette
		e.Params["shift_intensity"] = round3(i)
		e.Params["animation_speed"] = round3(max(0.5, 2-i))
		e.Description = "colors drift toward " + palette
	case domain.EffectBackgroundDecay:
		e.Params["decay_type"] = pick(ch, decayTypes)
		e.Params["decay_percentage"] = round3(i * 100)
		e.Params["pattern"] = pick(ch, decayPatterns)
		e.Description = fmt.Sprintf("wallpaper decays by %.0f%%", i*100)
	case domain.EffectInterfaceDistortion:
		areas := sample(ch, interfaceAreas, max(1, int(i*4)))
		e.Params["distortion_type"] = pick(ch, distortionTypes)
		e.Params["strength"] = round3(i)
		e.Params["affected_areas"] = areas
		e.Description = fmt.Sprintf("interface distorts across %d areas", len(areas))
	case domain.EffectSystemInstability:
		severity := "moderate"
		if i > 0.8 {
			severity = "critical"
		}
		e.Params["instability_type"] = pick(ch, instabilityTypes)
		e.Params["frequency"] = round3(i * 10)
		e.Params["severity"] = severity
		e.Description = severity + " system instability"
	}
	return e
}

func pick(ch chooser, options []string) string {
	return options[ch.IntN(len(options))]
}

func sample(ch chooser, options []string, n int) []string {
	if n > len(options) {
		n = len(options)
	}
	out := make([]string, 0, n)
	for _, idx := range ch.Perm(len(options))[:n] {
		out = append(out, options[idx])
	}
	return out
}
