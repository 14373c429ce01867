// Package standard provides the well-known frame contexts, host client types and
// capability paths shared by the session guard and the back-compat runtime table.
package standard

// =============================================================================
// FRAME CONTEXTS
// =============================================================================

// FrameContext names the logical placement the embedded page currently runs in.
type FrameContext string

const (
	FrameContextSettings       FrameContext = "settings"
	FrameContextContent        FrameContext = "content"
	FrameContextAuthentication FrameContext = "authentication"
	FrameContextRemove         FrameContext = "remove"
	FrameContextTask           FrameContext = "task"
	FrameContextSidePanel      FrameContext = "sidePanel"
	FrameContextStage          FrameContext = "stage"
	FrameContextMeetingStage   FrameContext = "meetingStage"
)

// AllFrameContexts lists every frame context a host is known to report.
func AllFrameContexts() []FrameContext {
	return []FrameContext{
		FrameContextSettings,
		FrameContextContent,
		FrameContextAuthentication,
		FrameContextRemove,
		FrameContextTask,
		FrameContextSidePanel,
		FrameContextStage,
		FrameContextMeetingStage,
	}
}

// =============================================================================
// HOST CLIENT TYPES
// =============================================================================

// HostClientType identifies the kind of client the host application runs on.
type HostClientType string

const (
	HostClientDesktop           HostClientType = "desktop"
	HostClientWeb               HostClientType = "web"
	HostClientAndroid           HostClientType = "android"
	HostClientIOS               HostClientType = "ios"
	HostClientIPadOS            HostClientType = "ipados"
	HostClientMacOS             HostClientType = "macos"
	HostClientRigel             HostClientType = "rigel"
	HostClientSurfaceHub        HostClientType = "surfaceHub"
	HostClientTeamsRoomsWindows HostClientType = "teamsRoomsWindows"
	HostClientTeamsRoomsAndroid HostClientType = "teamsRoomsAndroid"
	HostClientTeamsPhones       HostClientType = "teamsPhones"
	HostClientTeamsDisplays     HostClientType = "teamsDisplays"
)

// V1HostClientTypes are the client types that shipped with the first host SDK
// generation. Most back-compat capabilities apply to exactly this set.
func V1HostClientTypes() []HostClientType {
	return []HostClientType{
		HostClientDesktop,
		HostClientWeb,
		HostClientAndroid,
		HostClientIOS,
		HostClientIPadOS,
		HostClientRigel,
		HostClientSurfaceHub,
		HostClientTeamsRoomsWindows,
		HostClientTeamsRoomsAndroid,
		HostClientTeamsPhones,
		HostClientTeamsDisplays,
	}
}

// IsMobile reports whether the client type is a phone or tablet OS.
func (t HostClientType) IsMobile() bool {
	switch t {
	case HostClientAndroid, HostClientIOS, HostClientIPadOS:
		return true
	default:
		return false
	}
}

// =============================================================================
// CAPABILITY PATHS
// Dotted paths into the runtime "supports" tree.
// =============================================================================

const (
	CapAppEntity               = "appEntity"
	CapAppInstallDialog        = "appInstallDialog"
	CapCall                    = "call"
	CapChat                    = "chat"
	CapConversations           = "conversations"
	CapDialog                  = "dialog"
	CapDialogCard              = "dialog.card"
	CapDialogCardBot           = "dialog.card.bot"
	CapDialogURL               = "dialog.url"
	CapDialogURLBot            = "dialog.url.bot"
	CapDialogURLParentComm     = "dialog.url.parentCommunication"
	CapDialogUpdate            = "dialog.update"
	CapInteractive             = "interactive"
	CapLocation                = "location"
	CapLogs                    = "logs"
	CapMail                    = "mail"
	CapMeetingRoom             = "meetingRoom"
	CapMenus                   = "menus"
	CapMonetization            = "monetization"
	CapNestedAppAuth           = "nestedAppAuth"
	CapNotifications           = "notifications"
	CapPages                   = "pages"
	CapPagesAppButton          = "pages.appButton"
	CapPagesBackStack          = "pages.backStack"
	CapPagesConfig             = "pages.config"
	CapPagesCurrentApp         = "pages.currentApp"
	CapPagesFullTrust          = "pages.fullTrust"
	CapPagesTabs               = "pages.tabs"
	CapPeople                  = "people"
	CapRemoteCamera            = "remoteCamera"
	CapSharing                 = "sharing"
	CapStageView               = "stageView"
	CapTeams                   = "teams"
	CapTeamsFullTrust          = "teams.fullTrust"
	CapTeamsFullTrustJoinedTms = "teams.fullTrust.joinedTeams"
	CapTeamsCore               = "teamsCore"
	CapVideo                   = "video"
	CapVideoSharedFrames       = "video.sharedFrames"
	CapWebStorage              = "webStorage"
)
