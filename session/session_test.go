package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/hostbridge-go/bifaci"
	"github.com/machinefabric/hostbridge-go/bifaci/bifacitest"
	"github.com/machinefabric/hostbridge-go/origins"
	"github.com/machinefabric/hostbridge-go/session"
	"github.com/machinefabric/hostbridge-go/standard"
)

const hostOrigin = "https://teams.microsoft.com"

func reply(args ...any) bifacitest.Responder {
	return func(bifacitest.Request) ([]any, bool) { return args, true }
}

// framedSession returns a session embedded in a host that answers the
// handshake with initArgs.
func framedSession(t *testing.T, initArgs ...any) (*session.Session, *bifacitest.Host) {
	t.Helper()
	host, _, child := bifacitest.NewFramedHost(hostOrigin)
	host.Handle(bifaci.InitializeFunc, reply(initArgs...))
	return session.New(session.WithWindow(child)), host
}

func initialized(t *testing.T, initArgs ...any) (*session.Session, *bifacitest.Host) {
	t.Helper()
	s, host := framedSession(t, initArgs...)
	require.NoError(t, s.Initialize(context.Background()))
	return s, host
}

func countFunc(host *bifacitest.Host, fn string) int {
	n := 0
	for _, req := range host.Requests() {
		if req.Func == fn {
			n++
		}
	}
	return n
}

// TEST400: a host-supplied runtime decides support and the guard reports the exact context message
func Test400_end_to_end_runtime_and_guard(t *testing.T) {
	s, _ := initialized(t, "settings", "web", "1.9.0", map[string]any{
		"apiVersion": 1,
		"supports":   map[string]any{"chat": map[string]any{}},
	})

	assert.Equal(t, session.StateInitialized, s.State())
	ok, err := s.IsSupported(standard.CapChat)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.IsSupported(standard.CapMail)
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.EnsureInitialized(standard.FrameContextContent)
	require.Error(t, err)
	assert.EqualError(t, err, `This call is only allowed in following contexts: ["content"]. Current context: "settings".`)
	var ctxErr *session.InvalidContextError
	require.True(t, errors.As(err, &ctxErr))
	assert.Equal(t, standard.FrameContextSettings, ctxErr.Current)

	assert.NoError(t, s.EnsureInitialized())
	assert.NoError(t, s.EnsureInitialized(standard.FrameContextContent, standard.FrameContextSettings))
}

// TEST401: the handshake goes to the wildcard origin, later requests to the pinned host origin
func Test401_handshake_origin_discipline(t *testing.T) {
	s, host := framedSession(t, "content", "web", "2.0.1", nil)
	require.NoError(t, s.Initialize(context.Background(), "extra.example.com"))

	initReq, ok := host.Last(bifaci.InitializeFunc)
	require.True(t, ok)
	assert.Equal(t, bifaci.WildcardOrigin, initReq.TargetOrigin)
	require.Len(t, initReq.Args, 2)
	assert.JSONEq(t, `"`+session.DefaultLibraryVersion+`"`, string(initReq.Args[0]))
	assert.JSONEq(t, `["extra.example.com"]`, string(initReq.Args[1]))
	assert.Equal(t, hostOrigin, s.HostOrigin())

	require.NoError(t, s.SendMessageToParent("getContext", nil, nil))
	req, ok := host.Last("getContext")
	require.True(t, ok)
	assert.Equal(t, hostOrigin, req.TargetOrigin)
}

// TEST402: an old host without runtime config gets a synthesized runtime
func Test402_backcompat_runtime(t *testing.T) {
	s, _ := initialized(t, "content", "desktop", "2.0.1")

	rt := s.Runtime()
	require.NotNil(t, rt)
	assert.Equal(t, 4, rt.APIVersion)
	assert.True(t, rt.IsLegacyTeams)
	for _, path := range []string{standard.CapWebStorage, standard.CapTeamsFullTrustJoinedTms, standard.CapLocation, standard.CapChat} {
		ok, err := s.IsSupported(path)
		require.NoError(t, err)
		assert.True(t, ok, path)
	}
	ok, _ := s.IsSupported(standard.CapMail)
	assert.False(t, ok)
}

// TEST403: a missing SDK version defaults to 2.0.1
func Test403_default_sdk_version(t *testing.T) {
	s, _ := initialized(t, "content", "web")
	assert.Equal(t, session.DefaultClientSupportedSDKVersion, s.ClientSupportedSDKVersion())
	assert.Equal(t, standard.FrameContextContent, s.FrameContext())
	assert.Equal(t, standard.HostClientWeb, s.HostClientType())
	ok, _ := s.IsSupported(standard.CapTeamsFullTrustJoinedTms)
	assert.True(t, ok)
}

// TEST404: a malformed runtime config fails the handshake and allows a retry
func Test404_invalid_runtime_config_retry(t *testing.T) {
	s, host := framedSession(t, "content", "web", "2.0.1", map[string]any{"supports": map[string]any{}})

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrInvalidRuntimeConfig)
	assert.Equal(t, session.StateUninitialized, s.State())

	host.Handle(bifaci.InitializeFunc, reply("content", "web", "2.0.1", `{"apiVersion":2,"supports":{"mail":{}}}`))
	require.NoError(t, s.Initialize(context.Background()))
	ok, err := s.IsSupported(standard.CapMail)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, countFunc(host, bifaci.InitializeFunc))
}

// TEST405: concurrent and repeated Initialize calls share one handshake
func Test405_initialize_idempotent(t *testing.T) {
	host, _, child := bifacitest.NewFramedHost(hostOrigin)
	s := session.New(session.WithWindow(child))

	var wg sync.WaitGroup
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		s.InitializeAsync(func(err error) {
			results <- err
			wg.Done()
		})
	}

	require.Eventually(t, func() bool { return countFunc(host, bifaci.InitializeFunc) == 1 }, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return s.State() == session.StateAwaitingHost }, 5*time.Second, time.Millisecond)
	req, _ := host.Last(bifaci.InitializeFunc)
	host.Respond(req.ID, "content", "web", "2.0.1")

	wg.Wait()
	close(results)
	for err := range results {
		assert.NoError(t, err)
	}
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, 1, countFunc(host, bifaci.InitializeFunc))
}

// TEST406: sends before the handshake fail locally without touching the wire
func Test406_send_requires_initialized(t *testing.T) {
	s, host := framedSession(t, "content", "web")

	assert.ErrorIs(t, s.SendMessageToParent("getContext", nil, nil), session.ErrLibraryNotInitialized)
	_, err := s.SendMessageRequest(context.Background(), "getContext", nil)
	assert.ErrorIs(t, err, session.ErrLibraryNotInitialized)
	_, err = s.IsSupported(standard.CapChat)
	assert.ErrorIs(t, err, session.ErrLibraryNotInitialized)
	assert.ErrorIs(t, s.EnsureInitialized(), session.ErrLibraryNotInitialized)
	assert.EqualError(t, session.ErrLibraryNotInitialized, "The library has not yet been initialized")
	assert.Empty(t, host.Requests())

	require.NoError(t, s.Initialize(context.Background()))
	assert.ErrorIs(t, s.SendMessageToParent("", nil, nil), session.ErrInvalidArgument)
}

// TEST407: Uninitialize discards pending continuations and a later handshake uses fresh ids
func Test407_uninitialize_discards_pending(t *testing.T) {
	s, host := initialized(t, "content", "web")

	var called atomic.Bool
	require.NoError(t, s.SendMessageToParent("slowCall", nil, func([]json.RawMessage) { called.Store(true) }))
	slow, ok := host.Last("slowCall")
	require.True(t, ok)

	s.Uninitialize()
	assert.Equal(t, session.StateUninitialized, s.State())
	assert.Nil(t, s.Runtime())
	_, err := s.IsSupported(standard.CapChat)
	assert.ErrorIs(t, err, session.ErrLibraryNotInitialized)

	host.Respond(slow.ID)
	assert.False(t, called.Load())

	firstInit, _ := host.Last(bifaci.InitializeFunc)
	require.NoError(t, s.Initialize(context.Background()))
	secondInit, _ := host.Last(bifaci.InitializeFunc)
	assert.Greater(t, secondInit.ID, slow.ID)
	assert.Greater(t, secondInit.ID, firstInit.ID)

	host.Respond(slow.ID)
	assert.False(t, called.Load(), "a stale id never matches a new request")
}

// TEST408: an untrusted host is ignored unless its origin is added
func Test408_untrusted_host_origin(t *testing.T) {
	host, _, child := bifacitest.NewFramedHost("https://host.partner.example")
	host.Handle(bifaci.InitializeFunc, reply("content", "web"))

	s := session.New(session.WithWindow(child))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Initialize(ctx), context.DeadlineExceeded)
	assert.Equal(t, session.StateAwaitingHost, s.State())
	s.Uninitialize()

	trusted := session.New(session.WithWindow(child), session.WithValidOrigins("host.partner.example"))
	require.NoError(t, trusted.Initialize(context.Background()))
	assert.True(t, trusted.IsTrustedOrigin("https://host.partner.example"))
	assert.Contains(t, trusted.TrustedOrigins(), "teams.microsoft.com")
}

// TEST409: resolved origins extend the trust set and a failing resolver falls back to the static set
func Test409_origin_resolver(t *testing.T) {
	host, _, child := bifacitest.NewFramedHost("https://resolved.example.com")
	host.Handle(bifaci.InitializeFunc, reply("content", "web"))
	s := session.New(session.WithWindow(child), session.WithOriginResolver(origins.Static{"resolved.example.com"}))
	require.NoError(t, s.Initialize(context.Background()))

	failing := origins.Func(func(context.Context) ([]string, error) { return nil, errors.New("offline") })
	teamsHost, _, teamsChild := bifacitest.NewFramedHost(hostOrigin)
	teamsHost.Handle(bifaci.InitializeFunc, reply("content", "web"))
	fallback := session.New(session.WithWindow(teamsChild), session.WithOriginResolver(failing))
	require.NoError(t, fallback.Initialize(context.Background()))
	assert.False(t, fallback.IsTrustedOrigin("https://resolved.example.com"))
}

// TEST410: a native bridge makes the session frameless
func Test410_frameless_session(t *testing.T) {
	host, bridge := bifacitest.NewNativeHost()
	host.Handle(bifaci.InitializeFunc, reply("content", "android", "2.0.5"))
	host.Handle("getUser", reply(map[string]any{"name": "ada"}))

	s := session.New(session.WithNativeBridge(bridge))
	assert.True(t, s.IsFrameless())
	require.NoError(t, s.Initialize(context.Background()))
	assert.True(t, s.IsFrameless())
	assert.Empty(t, s.HostOrigin())

	user, err := s.SendAndUnwrap(context.Background(), "getUser", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ada"}`, string(user))

	ok, _ := s.IsSupported(standard.CapWebStorage)
	assert.True(t, ok)
}

// TEST411: a non-null first arg is a host-reported SdkError, otherwise the second arg is the result
func Test411_send_and_handle_sdk_error(t *testing.T) {
	s, host := initialized(t, "content", "web")
	host.Handle("fails", reply(map[string]any{"errorCode": 500, "message": "bad"}, nil))
	host.Handle("works", reply(nil, map[string]any{"a": 1}))

	_, err := s.SendAndHandleSdkError(context.Background(), "fails", nil)
	var sdkErr *bifaci.SdkError
	require.True(t, errors.As(err, &sdkErr))
	assert.Equal(t, bifaci.ErrorCodeInternalError, sdkErr.ErrorCode)
	assert.Equal(t, "bad", sdkErr.Message)

	result, err := s.SendAndHandleSdkError(context.Background(), "works", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(result))
}

// TEST412: status-and-reason responses map false to an error carrying the reason
func Test412_send_and_handle_status(t *testing.T) {
	s, host := initialized(t, "content", "web")
	host.Handle("refused", reply(false, "nope"))
	host.Handle("accepted", reply(true))

	err := s.SendAndHandleStatusAndReason(context.Background(), "refused", nil)
	var sdkErr *bifaci.SdkError
	require.True(t, errors.As(err, &sdkErr))
	assert.Equal(t, "nope", sdkErr.Message)

	assert.NoError(t, s.SendAndHandleStatusAndReason(context.Background(), "accepted", nil))
}

// TEST413: capability and version guards report wire error codes
func Test413_support_and_version_guards(t *testing.T) {
	s, _ := initialized(t, "content", "web", "2.0.0")

	assert.NoError(t, s.EnsureSupported(standard.CapPeople))
	err := s.EnsureSupported(standard.CapMail)
	var sdkErr *bifaci.SdkError
	require.True(t, errors.As(err, &sdkErr))
	assert.Equal(t, bifaci.ErrorCodeNotSupportedOnPlatform, sdkErr.ErrorCode)

	assert.NoError(t, s.EnsureMinSDKVersion("1.9.0"))
	err = s.EnsureMinSDKVersion("2.0.1")
	require.True(t, errors.As(err, &sdkErr))
	assert.Equal(t, bifaci.ErrorCodeOldPlatform, sdkErr.ErrorCode)
}

// TEST414: host-initiated calls reach registered handlers, which may send again
func Test414_host_initiated_call(t *testing.T) {
	s, host := initialized(t, "content", "web")

	var got json.RawMessage
	require.NoError(t, s.RegisterHandler("themeChange", func(args []json.RawMessage) {
		got = args[0]
		require.NoError(t, s.SendMessageToParent("themeAck", nil, nil))
	}))
	assert.ErrorIs(t, s.RegisterHandler("", nil), session.ErrInvalidArgument)

	host.Call("themeChange", "dark")
	assert.JSONEq(t, `"dark"`, string(got))
	assert.Equal(t, 1, countFunc(host, "themeAck"))
}

// TEST415: partial responses reach the callback until the final one
func Test415_partial_responses(t *testing.T) {
	s, host := initialized(t, "content", "web")

	var mu sync.Mutex
	var deliveries []string
	require.NoError(t, s.SendMessageToParent("stream", nil, func(args []json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		deliveries = append(deliveries, string(args[0]))
	}))
	req, _ := host.Last("stream")
	host.RespondPartial(req.ID, 1)
	host.RespondPartial(req.ID, 2)
	host.Respond(req.ID, 3)
	host.Respond(req.ID, 4)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "2", "3"}, deliveries)
}

// TEST416: uninitializing during the handshake releases waiters and drops the late answer
func Test416_uninitialize_while_awaiting_host(t *testing.T) {
	host, _, child := bifacitest.NewFramedHost(hostOrigin)
	s := session.New(session.WithWindow(child))

	done := make(chan error, 1)
	go func() { done <- s.Initialize(context.Background()) }()
	require.Eventually(t, func() bool { return countFunc(host, bifaci.InitializeFunc) == 1 }, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return s.State() == session.StateAwaitingHost }, 5*time.Second, time.Millisecond)

	s.Uninitialize()
	select {
	case err := <-done:
		var hsErr *session.HandshakeError
		require.True(t, errors.As(err, &hsErr))
		assert.Equal(t, session.HandshakeErrorTypeAbandoned, hsErr.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("Initialize never returned")
	}

	req, _ := host.Last(bifaci.InitializeFunc)
	host.Respond(req.ID, "content", "web")
	assert.Equal(t, session.StateUninitialized, s.State())
}

// TEST417: the api version tag travels with the request
func Test417_api_version_tag(t *testing.T) {
	s, host := initialized(t, "content", "web")
	require.NoError(t, s.SendMessageToParent("pages.navigateToApp", []any{"app"}, nil, session.WithAPIVersionTag("v2_pages.navigateToApp")))
	req, ok := host.Last("pages.navigateToApp")
	require.True(t, ok)
	assert.Equal(t, "v2_pages.navigateToApp", req.APIVersionTag)
}

// TEST418: without a host window the handshake fails with a no-host error
func Test418_no_host(t *testing.T) {
	s := session.New(session.WithWindow(bifacitest.NewWindow("https://app.example.com")))
	err := s.Initialize(context.Background())
	var hsErr *session.HandshakeError
	require.True(t, errors.As(err, &hsErr))
	assert.Equal(t, session.HandshakeErrorTypeNoHost, hsErr.Type)
	assert.Equal(t, session.StateUninitialized, s.State())

	assert.Error(t, session.New().Initialize(context.Background()))
}

// TEST419: a host response with a non-string field is rejected
func Test419_invalid_handshake_response(t *testing.T) {
	s, _ := framedSession(t, 42, "web")
	err := s.Initialize(context.Background())
	var hsErr *session.HandshakeError
	require.True(t, errors.As(err, &hsErr))
	assert.Equal(t, session.HandshakeErrorTypeInvalidResponse, hsErr.Type)
}

// TEST420: the returned runtime is a copy
func Test420_runtime_copy(t *testing.T) {
	s, _ := initialized(t, "content", "web", "2.0.1")
	rt := s.Runtime()
	rt.Supports.Set(standard.CapMail)
	ok, _ := s.IsSupported(standard.CapMail)
	assert.False(t, ok)
}

// TEST421: configured origins are reported to the host ahead of per-call extras
func Test421_handshake_reports_configured_origins(t *testing.T) {
	host, _, child := bifacitest.NewFramedHost(hostOrigin)
	host.Handle(bifaci.InitializeFunc, reply("content", "web"))
	s := session.New(session.WithWindow(child), session.WithValidOrigins("partner.example.com", "*.partner.example.com"))
	require.NoError(t, s.Initialize(context.Background(), "call.example.com", "partner.example.com"))

	initReq, ok := host.Last(bifaci.InitializeFunc)
	require.True(t, ok)
	require.Len(t, initReq.Args, 2)
	assert.JSONEq(t, `["partner.example.com","*.partner.example.com","call.example.com"]`, string(initReq.Args[1]))

	bare, bareHost := framedSession(t, "content", "web")
	require.NoError(t, bare.Initialize(context.Background()))
	req, ok := bareHost.Last(bifaci.InitializeFunc)
	require.True(t, ok)
	assert.Len(t, req.Args, 1)
}
