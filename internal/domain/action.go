package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionKind identifies the type of a player action.
type ActionKind string

const (
	ActionDesktopClick           ActionKind = "desktop_click"
	ActionMouseMove              ActionKind = "mouse_move"
	ActionWindowFocus            ActionKind = "window_focus"
	ActionFileClick              ActionKind = "file_click"
	ActionFileDelete             ActionKind = "file_delete"
	ActionFileMove               ActionKind = "file_move"
	ActionFileRename             ActionKind = "file_rename"
	ActionFileProperties         ActionKind = "file_properties"
	ActionContextMenuOpen        ActionKind = "context_menu_open"
	ActionSystemExploration      ActionKind = "system_exploration"
	ActionRightClickInvestigate  ActionKind = "right_click_investigation"
	ActionDependencyCheck        ActionKind = "dependency_check"
	ActionConsoleInspect         ActionKind = "console_inspect"
	ActionDebug                  ActionKind = "debug_action"
	ActionSettingsChange         ActionKind = "settings_change"
	ActionCriticalSettingsChange ActionKind = "critical_settings_change"
	ActionNetworkDisconnect      ActionKind = "network_disconnect"
	ActionApplicationClose       ActionKind = "application_close"
	ActionSystemFileDelete       ActionKind = "system_file_delete"
	ActionRegistryModify         ActionKind = "registry_modify"
	ActionProcessKill            ActionKind = "process_kill"
	ActionCriticalProcessKill    ActionKind = "critical_process_kill"
	ActionFormatDrive            ActionKind = "format_drive"
	ActionSystemCorruption       ActionKind = "system_corruption"
	ActionConsoleClose           ActionKind = "console_close"
	ActionInstructionIgnore      ActionKind = "instruction_ignore"
	ActionTextInput              ActionKind = "text_input"
	ActionCustomTextInput        ActionKind = "custom_text_input"
	ActionHesitationDetected     ActionKind = "hesitation_detected"
	ActionRebellion              ActionKind = "rebellion_action"

	// ActionUnknown stands in for a missing kind.
	ActionUnknown ActionKind = "unknown"
)

// ActionPayload is the kind-specific part of an action.
type ActionPayload interface {
	isActionPayload()
}

// TargetPayload carries attributes of the resource an action targets. It is
// the payload of every kind without a more specific variant.
type TargetPayload struct {
	Protected bool `json:"protected,omitempty"`
}

// PropertiesPayload carries attributes of a properties inspection.
type PropertiesPayload struct {
	Protected        bool `json:"protected,omitempty"`
	ShowDependencies bool `json:"show_dependencies,omitempty"`
}

// TextPayload carries free text typed by the player.
type TextPayload struct {
	Protected bool   `json:"protected,omitempty"`
	Content   string `json:"content"`
}

func (TargetPayload) isActionPayload()     {}
func (PropertiesPayload) isActionPayload() {}
func (TextPayload) isActionPayload()       {}

// Action is a raw player action. Payload holds the variant selected by Kind.
type Action struct {
	ID             string        `json:"id,omitempty"`
	Kind           ActionKind    `json:"kind"`
	Target         string        `json:"target,omitempty"`
	ReactionTime   *float64      `json:"reaction_time,omitempty"`   // seconds
	HesitationTime *float64      `json:"hesitation_time,omitempty"` // seconds
	InstructionID  string        `json:"instruction_id,omitempty"`
	Obedient       *bool         `json:"obedient,omitempty"`
	Meta           *bool         `json:"meta,omitempty"`
	Payload        ActionPayload `json:"payload,omitempty"`
}

// payloadFor returns an empty payload of the variant used by kind.
func payloadFor(kind ActionKind) ActionPayload {
	switch kind {
	case ActionFileProperties:
		return &PropertiesPayload{}
	case ActionTextInput, ActionCustomTextInput:
		return &TextPayload{}
	default:
		return &TargetPayload{}
	}
}

// lenient drops type mismatches: encoding/json still fills every field it
// could decode, so the mismatched ones keep their zero value.
func lenient(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

// UnmarshalJSON decodes the payload into the variant matching the kind.
// Fields of the wrong type decode as zero values and a missing kind decodes
// as ActionUnknown; only malformed JSON is rejected.
func (a *Action) UnmarshalJSON(data []byte) error {
	type alias Action
	var raw struct {
		alias
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	if err := lenient(json.Unmarshal(data, &raw)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	*a = Action(raw.alias)
	if a.Kind == "" {
		a.Kind = ActionUnknown
	}

	p := payloadFor(a.Kind)
	if len(raw.Payload) > 0 && string(raw.Payload) != "null" {
		if err := lenient(json.Unmarshal(raw.Payload, p)); err != nil {
			return fmt.Errorf("%w: payload for %s: %v", ErrInvalidAction, a.Kind, err)
		}
	}
	switch v := p.(type) {
	case *TargetPayload:
		a.Payload = *v
	case *PropertiesPayload:
		a.Payload = *v
	case *TextPayload:
		a.Payload = *v
	}
	return nil
}

// Protected reports whether the action targets a protected resource.
func (a Action) Protected() bool {
	switch p := a.Payload.(type) {
	case TargetPayload:
		return p.Protected
	case PropertiesPayload:
		return p.Protected
	case TextPayload:
		return p.Protected
	}
	return false
}

// ShowDependencies reports whether a properties inspection asked for dependencies.
func (a Action) ShowDependencies() bool {
	if p, ok := a.Payload.(PropertiesPayload); ok {
		return p.ShowDependencies
	}
	return false
}

// Text returns the free text of a text action.
func (a Action) Text() string {
	if p, ok := a.Payload.(TextPayload); ok {
		return p.Content
	}
	return ""
}

// Reaction returns the reaction time in seconds, if reported.
func (a Action) Reaction() (float64, bool) {
	if a.ReactionTime == nil {
		return 0, false
	}
	return *a.ReactionTime, true
}
