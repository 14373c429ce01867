package capability

import (
	"slices"

	"github.com/machinefabric/hostbridge-go/standard"
)

// BackCompatAPIVersion is the apiVersion of every synthesized runtime.
const BackCompatAPIVersion = 4

// BackCompatEntry grants Path to hosts at or above MinVersion running on one
// of HostClientTypes.
type BackCompatEntry struct {
	MinVersion      string
	Path            string
	HostClientTypes []standard.HostClientType
}

// applies reports whether the entry covers hostClientType. An empty set
// covers every client type.
func (e BackCompatEntry) applies(hostClientType standard.HostClientType) bool {
	return len(e.HostClientTypes) == 0 || slices.Contains(e.HostClientTypes, hostClientType)
}

// baseCapabilities are granted to every legacy host regardless of version,
// gated only by client type.
var baseCapabilities = []BackCompatEntry{
	{Path: standard.CapAppInstallDialog},
	{Path: standard.CapAppEntity},
	{Path: standard.CapCall},
	{Path: standard.CapChat},
	{Path: standard.CapConversations},
	{Path: standard.CapDialogCardBot},
	{Path: standard.CapDialogURLBot},
	{Path: standard.CapDialogURLParentComm},
	{Path: standard.CapDialogUpdate},
	{Path: standard.CapInteractive},
	{Path: standard.CapLogs},
	{Path: standard.CapMeetingRoom},
	{Path: standard.CapMenus},
	{Path: standard.CapMonetization},
	{Path: standard.CapNotifications},
	{Path: standard.CapPagesAppButton},
	{Path: standard.CapPagesBackStack},
	{Path: standard.CapPagesConfig},
	{Path: standard.CapPagesCurrentApp},
	{Path: standard.CapPagesFullTrust},
	{Path: standard.CapPagesTabs},
	{Path: standard.CapRemoteCamera, HostClientTypes: []standard.HostClientType{standard.HostClientDesktop, standard.HostClientWeb}},
	{Path: standard.CapStageView},
	{Path: standard.CapTeamsFullTrust},
	{Path: standard.CapTeamsCore},
	{Path: standard.CapVideoSharedFrames},
}

// backCompatTable is sorted by MinVersion.
var backCompatTable = []BackCompatEntry{
	{MinVersion: "1.9.0", Path: standard.CapLocation, HostClientTypes: standard.V1HostClientTypes()},
	{MinVersion: "2.0.0", Path: standard.CapPeople, HostClientTypes: standard.V1HostClientTypes()},
	{MinVersion: "2.0.0", Path: standard.CapSharing, HostClientTypes: []standard.HostClientType{
		standard.HostClientDesktop,
		standard.HostClientWeb,
	}},
	{MinVersion: "2.0.1", Path: standard.CapTeamsFullTrustJoinedTms, HostClientTypes: []standard.HostClientType{
		standard.HostClientAndroid,
		standard.HostClientDesktop,
		standard.HostClientIOS,
		standard.HostClientTeamsRoomsAndroid,
		standard.HostClientTeamsPhones,
		standard.HostClientTeamsDisplays,
		standard.HostClientWeb,
	}},
	{MinVersion: "2.0.1", Path: standard.CapWebStorage, HostClientTypes: []standard.HostClientType{
		standard.HostClientDesktop,
	}},
	{MinVersion: "2.0.5", Path: standard.CapWebStorage, HostClientTypes: []standard.HostClientType{
		standard.HostClientAndroid,
		standard.HostClientIOS,
	}},
}

// BackCompatTable returns a copy of the version table.
func BackCompatTable() []BackCompatEntry {
	return slices.Clone(backCompatTable)
}

// GenerateBackCompatRuntimeConfig synthesizes the runtime a legacy host would
// have reported. Entries are included when hostSupportedVersion is at least
// their MinVersion and hostClientType is in their set. An unparseable version
// yields only the base capabilities and the error.
func GenerateBackCompatRuntimeConfig(hostSupportedVersion string, hostClientType standard.HostClientType) (*Runtime, error) {
	rt := &Runtime{
		APIVersion:    BackCompatAPIVersion,
		IsLegacyTeams: true,
		Supports:      Supports{},
	}
	for _, entry := range baseCapabilities {
		if entry.applies(hostClientType) {
			rt.Supports.Set(entry.Path)
		}
	}

	have, err := parseVersion(hostSupportedVersion)
	if err != nil {
		return rt, err
	}
	for _, entry := range backCompatTable {
		want, err := parseVersion(entry.MinVersion)
		if err != nil {
			return rt, err
		}
		if have.LessThan(want) {
			// Sorted table, nothing further can apply.
			break
		}
		if entry.applies(hostClientType) {
			rt.Supports.Set(entry.Path)
		}
	}
	return rt, nil
}
