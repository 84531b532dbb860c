package classifier

import "github.com/bouteflan/penrose-experiment/internal/domain"

// traits describes the fixed properties of an action kind.
type traits struct {
	category      domain.Category
	gravity       int
	obedient      bool
	destructive   bool
	meta          bool
	investigation bool
	corrupts      bool
	important     bool
	multiplier    float64
	description   string
}

// defaultTraits applies to kinds missing from the table.
var defaultTraits = traits{category: domain.CategoryNeutral, gravity: 2, description: "unrecognized action"}

var kindTraits = map[domain.ActionKind]traits{
	domain.ActionDesktopClick: {category: domain.CategoryNeutral, gravity: 0, description: "desktop click"},
	domain.ActionMouseMove:    {category: domain.CategoryNeutral, gravity: 0, description: "mouse movement"},
	domain.ActionWindowFocus:  {category: domain.CategoryNeutral, gravity: 0, description: "window focus"},
	domain.ActionFileClick:    {category: domain.CategoryNeutral, gravity: 1, description: "file selection"},

	domain.ActionContextMenuOpen:       {category: domain.CategoryMeta, gravity: 1, meta: true, investigation: true, important: true, description: "context menu opened"},
	domain.ActionFileProperties:        {category: domain.CategoryMeta, gravity: 2, meta: true, investigation: true, important: true, description: "file properties inspected"},
	domain.ActionDependencyCheck:       {category: domain.CategoryMeta, gravity: 2, meta: true, investigation: true, description: "dependency check"},
	domain.ActionSystemExploration:     {category: domain.CategoryMeta, gravity: 2, meta: true, description: "system exploration"},
	domain.ActionRightClickInvestigate: {category: domain.CategoryMeta, gravity: 2, description: "right click investigation"},
	domain.ActionConsoleInspect:        {category: domain.CategoryNeutral, gravity: 2, meta: true, description: "assistant console inspected"},
	domain.ActionDebug:                 {category: domain.CategoryNeutral, gravity: 2, meta: true, description: "debug action"},

	domain.ActionFileRename:        {category: domain.CategoryObedient, gravity: 3, obedient: true, description: "file renamed"},
	domain.ActionFileMove:          {category: domain.CategoryObedient, gravity: 3, obedient: true, description: "file moved"},
	domain.ActionSettingsChange:    {category: domain.CategoryObedient, gravity: 4, obedient: true, description: "settings changed"},
	domain.ActionApplicationClose:  {category: domain.CategoryNeutral, gravity: 2, obedient: true, description: "application closed"},
	domain.ActionNetworkDisconnect: {category: domain.CategoryObedient, gravity: 4, obedient: true, destructive: true, multiplier: 1.2, description: "network disconnected"},
	domain.ActionFileDelete:        {category: domain.CategoryObedient, gravity: 5, obedient: true, destructive: true, corrupts: true, important: true, multiplier: 1.5, description: "file deleted"},

	domain.ActionSystemFileDelete:       {category: domain.CategoryDestructive, gravity: 8, destructive: true, corrupts: true, multiplier: 3.0, description: "system file deleted"},
	domain.ActionRegistryModify:         {category: domain.CategoryDestructive, gravity: 9, destructive: true, corrupts: true, multiplier: 2.5, description: "registry modified"},
	domain.ActionCriticalProcessKill:    {category: domain.CategoryDestructive, gravity: 2, description: "critical process killed"},
	domain.ActionProcessKill:            {category: domain.CategoryNeutral, gravity: 7, destructive: true, corrupts: true, multiplier: 2.0, description: "process killed"},
	domain.ActionCriticalSettingsChange: {category: domain.CategoryNeutral, gravity: 2, corrupts: true, multiplier: 2.2, description: "critical settings changed"},
	domain.ActionFormatDrive:            {category: domain.CategoryNeutral, gravity: 2, destructive: true, description: "drive formatted"},
	domain.ActionSystemCorruption:       {category: domain.CategoryNeutral, gravity: 8, important: true, description: "system corruption"},

	domain.ActionConsoleClose:      {category: domain.CategoryRebellion, gravity: 2, description: "assistant console closed"},
	domain.ActionInstructionIgnore: {category: domain.CategoryRebellion, gravity: 2, description: "instruction ignored"},
	domain.ActionCustomTextInput:   {category: domain.CategoryRebellion, gravity: 2, description: "custom text typed"},
	domain.ActionTextInput:         {category: domain.CategoryNeutral, gravity: 2, description: "text typed"},

	domain.ActionHesitationDetected: {category: domain.CategoryNeutral, gravity: 2, important: true, description: "hesitation detected"},
	domain.ActionRebellion:          {category: domain.CategoryNeutral, gravity: 2, important: true, description: "rebellion"},
}

func lookup(kind domain.ActionKind) traits {
	if t, ok := kindTraits[kind]; ok {
		if t.multiplier == 0 {
			t.multiplier = 1.0
		}
		return t
	}
	t := defaultTraits
	t.multiplier = 1.0
	return t
}

// IsInvestigation reports whether kind belongs to the investigation set.
func IsInvestigation(kind domain.ActionKind) bool {
	return lookup(kind).investigation
}
