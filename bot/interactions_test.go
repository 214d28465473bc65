package bot

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport answers every REST call with status, 204 by default,
// and keeps the requests.
type recordingTransport struct {
	mu       sync.Mutex
	status   int
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	rt.mu.Lock()
	rt.requests = append(rt.requests, recordedRequest{Method: req.Method, Path: req.URL.Path, Body: body})
	status := rt.status
	rt.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}

	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Request:    req,
	}, nil
}

func (rt *recordingTransport) recorded() []recordedRequest {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]recordedRequest(nil), rt.requests...)
}

type sentResponse struct {
	Type discordgo.InteractionResponseType `json:"type"`
	Data struct {
		Content string                 `json:"content"`
		Flags   discordgo.MessageFlags `json:"flags"`
	} `json:"data"`
}

func newRecordingBot(t *testing.T) (*Bot, *recordingTransport) {
	t.Helper()
	b := newTestBot(t)
	rt := &recordingTransport{}
	b.session.Client = &http.Client{Transport: rt}
	return b, rt
}

func interactionFrom(userID, command string) *discordgo.InteractionCreate {
	i := commandInteraction(command, &discordgo.Member{User: &discordgo.User{ID: userID, Username: "caller"}})
	i.Token = "token"
	return i
}

// onlyCallback asserts a single interaction callback was sent and decodes it.
func onlyCallback(t *testing.T, rt *recordingTransport) sentResponse {
	t.Helper()
	requests := rt.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPost, requests[0].Method)
	assert.True(t, strings.HasSuffix(requests[0].Path, "/interactions/interaction/token/callback"), requests[0].Path)

	var resp sentResponse
	require.NoError(t, json.Unmarshal(requests[0].Body, &resp))
	return resp
}

func TestDeniedCallerGetsEphemeralNotice(t *testing.T) {
	b, rt := newRecordingBot(t)

	b.interactionCreate(b.session, interactionFrom("42", "record"))

	resp := onlyCallback(t, rt)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, permissionDenied, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)

	// The gate still registers the caller and the guild.
	_, ok := b.members.Get(42)
	assert.True(t, ok)
	_, ok = b.guilds.Get(1001)
	assert.True(t, ok)
}

func TestHandlerErrorIsAnsweredWithGenericFailure(t *testing.T) {
	b, rt := newRecordingBot(t)
	b.commands["broken"] = command{
		def: &discordgo.ApplicationCommand{Name: "broken"},
		handle: func(*discordgo.Session, *discordgo.InteractionCreate, *Request) error {
			return errors.New("disk on fire")
		},
	}

	b.interactionCreate(b.session, interactionFrom(testOwnerID, "broken"))

	resp := onlyCallback(t, rt)
	assert.Equal(t, genericFailure, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	b, rt := newRecordingBot(t)
	b.commands["explode"] = command{
		def: &discordgo.ApplicationCommand{Name: "explode"},
		handle: func(*discordgo.Session, *discordgo.InteractionCreate, *Request) error {
			panic("boom")
		},
	}

	require.NotPanics(t, func() {
		b.interactionCreate(b.session, interactionFrom(testOwnerID, "explode"))
	})

	resp := onlyCallback(t, rt)
	assert.Equal(t, genericFailure, resp.Data.Content)
}

func TestUnknownCommandIsAnswered(t *testing.T) {
	b, rt := newRecordingBot(t)

	b.interactionCreate(b.session, interactionFrom(testOwnerID, "nonexistent"))

	resp := onlyCallback(t, rt)
	assert.Equal(t, genericFailure, resp.Data.Content)
}

func TestUnknownComponentIsAnswered(t *testing.T) {
	b, rt := newRecordingBot(t)
	i := interactionFrom(testOwnerID, "")
	i.Type = discordgo.InteractionMessageComponent
	i.Data = discordgo.MessageComponentInteractionData{CustomID: "stale_button"}

	b.interactionCreate(b.session, i)

	resp := onlyCallback(t, rt)
	assert.Equal(t, genericFailure, resp.Data.Content)
}

func TestAllowedCommandRunsHandler(t *testing.T) {
	b, rt := newRecordingBot(t)

	b.interactionCreate(b.session, interactionFrom("42", "info"))

	resp := onlyCallback(t, rt)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Contains(t, resp.Data.Content, "**Zeta-Bot [v"+Version+"]**")
	assert.Zero(t, resp.Data.Flags)
}

func TestRecordOutsideVoiceRepliesOnce(t *testing.T) {
	b, rt := newRecordingBot(t)

	b.interactionCreate(b.session, interactionFrom(testOwnerID, "record"))

	resp := onlyCallback(t, rt)
	assert.Equal(t, "You are not in a voice channel", resp.Data.Content)
	b.mu.RLock()
	assert.Empty(t, b.recorders)
	b.mu.RUnlock()
}

func TestFailedReplyIsLogged(t *testing.T) {
	b, rt := newRecordingBot(t)
	rt.status = http.StatusInternalServerError
	var buf bytes.Buffer
	b.log.SetOutput(&buf)

	req, err := newRequest(b.session, interactionFrom(testOwnerID, "join"))
	require.NoError(t, err)

	_, err = b.join(b.session, newReply(b.session, interactionFrom(testOwnerID, "join")), req, "", true)
	assert.ErrorIs(t, err, errNotInVoice)
	assert.Contains(t, buf.String(), "Unable to reply")
}

func TestReadyStartsSchedulerAndStopHaltsIt(t *testing.T) {
	b, _ := newRecordingBot(t)
	b.cfg.AutoReboot = true
	b.cfg.ARTimezone = "UTC"

	b.ready(b.session, &discordgo.Ready{User: &discordgo.User{ID: testBotID, Username: "zeta-bot"}})

	b.mu.RLock()
	scheduler := b.scheduler
	b.mu.RUnlock()
	require.NotNil(t, scheduler)
	assert.Len(t, scheduler.Entries(), 2)

	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
