// Package hostbridge provides flat re-exports of the subpackages, so a page
// can drive a host session from a single import.
package hostbridge

import (
	"github.com/machinefabric/hostbridge-go/bifaci"
	"github.com/machinefabric/hostbridge-go/capability"
	"github.com/machinefabric/hostbridge-go/naa"
	"github.com/machinefabric/hostbridge-go/origins"
	"github.com/machinefabric/hostbridge-go/session"
	"github.com/machinefabric/hostbridge-go/standard"
)

// Session types and functions
type Session = session.Session
type SessionOption = session.Option
type State = session.State
type HandshakeError = session.HandshakeError
type InvalidContextError = session.InvalidContextError

var NewSession = session.New
var WithLogger = session.WithLogger
var WithDiagnosticLogging = session.WithDiagnosticLogging
var WithWindow = session.WithWindow
var WithNativeBridge = session.WithNativeBridge
var WithLibraryVersion = session.WithLibraryVersion
var WithValidOrigins = session.WithValidOrigins
var WithOriginResolver = session.WithOriginResolver
var WithAPIVersionTag = session.WithAPIVersionTag

var ErrLibraryNotInitialized = session.ErrLibraryNotInitialized
var ErrInvalidArgument = session.ErrInvalidArgument
var ErrInvalidRuntimeConfig = session.ErrInvalidRuntimeConfig

// Bifaci (protocol) types
type Window = bifaci.Window
type MessageEvent = bifaci.MessageEvent
type NativeBridge = bifaci.NativeBridge
type Transport = bifaci.Transport
type MessageRequest = bifaci.MessageRequest
type MessageResponse = bifaci.MessageResponse
type Continuation = bifaci.Continuation
type HandlerFunc = bifaci.HandlerFunc
type SdkError = bifaci.SdkError
type ErrorCode = bifaci.ErrorCode
type Limits = bifaci.Limits
type StreamBridge = bifaci.StreamBridge
type WebSocketBridge = bifaci.WebSocketBridge

var NewStreamBridge = bifaci.NewStreamBridge
var NewWebSocketBridge = bifaci.NewWebSocketBridge
var DialWebSocketBridge = bifaci.DialWebSocketBridge
var NewSdkError = bifaci.NewSdkError

// Capability model
type Runtime = capability.Runtime
type Supports = capability.Supports
type BackCompatEntry = capability.BackCompatEntry

var ParseRuntime = capability.ParseRuntime
var GenerateBackCompatRuntimeConfig = capability.GenerateBackCompatRuntimeConfig
var CompareVersions = capability.CompareVersions

// Origins
type TrustSet = origins.TrustSet
type OriginResolver = origins.Resolver

var NewTrustSet = origins.NewTrustSet

// Nested app auth
type NestedAppAuthBridge = naa.Bridge

var InitializeNestedAppAuth = naa.Initialize

// Standard values
type FrameContext = standard.FrameContext
type HostClientType = standard.HostClientType
