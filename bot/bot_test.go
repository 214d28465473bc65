package bot

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/31Zeta/zeta-bot/config"
	"github.com/31Zeta/zeta-bot/logger"
	"github.com/31Zeta/zeta-bot/registry"
)

const (
	testGuildID = "1001"
	testOwnerID = "7"
	testBotID   = "9000"
)

func newTestSession(t *testing.T) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	s.State.User = &discordgo.User{ID: testBotID, Username: "zeta-bot", Bot: true}
	return s
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	cfg := config.Default()
	cfg.Token = "test-token"
	cfg.Owner = testOwnerID
	cfg.DataRoot = t.TempDir()

	log := logger.New("[System]", 0)
	log.SetOutput(io.Discard)

	b, err := newBot(newTestSession(t), cfg, log)
	require.NoError(t, err)
	return b
}

func commandInteraction(name string, member *discordgo.Member) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction",
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   testGuildID,
			ChannelID: "2002",
			Member:    member,
			Data:      discordgo.ApplicationCommandInteractionData{Name: name},
		},
	}
}

func TestNewRequest(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{
		ID:   testGuildID,
		Name: "Alpha",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: testGuildID, UserID: "42", ChannelID: "3003"},
		},
	}))

	member := &discordgo.Member{User: &discordgo.User{ID: "42", Username: "zeta", GlobalName: "Zeta"}}
	req, err := newRequest(s, commandInteraction("join", member))
	require.NoError(t, err)

	assert.Equal(t, &Request{
		Guild:          1001,
		GuildID:        testGuildID,
		GuildName:      "Alpha",
		User:           42,
		UserID:         "42",
		UserName:       "Zeta",
		ChannelID:      "2002",
		VoiceChannelID: "3003",
		Command:        "join",
	}, req)
}

func TestNewRequestOutsideGuild(t *testing.T) {
	s := newTestSession(t)
	i := commandInteraction("info", nil)
	i.GuildID = ""
	i.User = &discordgo.User{ID: "42"}

	_, err := newRequest(s, i)
	assert.ErrorIs(t, err, errNotInGuild)
}

func TestNewRequestUnknownGuildFallsBackToID(t *testing.T) {
	s := newTestSession(t)
	member := &discordgo.Member{User: &discordgo.User{ID: "42", Username: "zeta"}}

	req, err := newRequest(s, commandInteraction("info", member))
	require.NoError(t, err)
	assert.Equal(t, testGuildID, req.GuildName)
	assert.Empty(t, req.VoiceChannelID)
}

func TestMemberName(t *testing.T) {
	cases := []struct {
		name   string
		member *discordgo.Member
		want   string
	}{
		{"nickname wins", &discordgo.Member{Nick: "Nick", User: &discordgo.User{GlobalName: "Global", Username: "user"}}, "Nick"},
		{"global name", &discordgo.Member{User: &discordgo.User{GlobalName: "Global", Username: "user"}}, "Global"},
		{"username", &discordgo.Member{User: &discordgo.User{Username: "user"}}, "user"},
		{"no user", &discordgo.Member{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, memberName(tc.member))
		})
	}
}

func TestAuthorize(t *testing.T) {
	b := newTestBot(t)

	allowed, group := b.authorize(&Request{User: 7, Command: "save"})
	assert.True(t, allowed)
	assert.Equal(t, "owner", group)

	allowed, group = b.authorize(&Request{User: 42, Command: "info"})
	assert.True(t, allowed)
	assert.Equal(t, "user", group)

	allowed, _ = b.authorize(&Request{User: 42, Command: "record"})
	assert.False(t, allowed)

	b.members.Ensure(42, "zeta")
	require.NoError(t, b.perms.SetGroup(42, "blacklist"))
	allowed, group = b.authorize(&Request{User: 42, Command: "info"})
	assert.False(t, allowed)
	assert.Equal(t, "blacklist", group)
}

func TestCommandTable(t *testing.T) {
	b := newTestBot(t)

	require.Len(t, b.commands, len(commandOrder))
	for _, name := range commandOrder {
		cmd, ok := b.commands[name]
		require.True(t, ok, name)
		assert.Equal(t, name, cmd.def.Name)
		assert.NotNil(t, cmd.handle, name)
	}

	// Every command is reachable by the admin group.
	for _, name := range commandOrder {
		assert.Contains(t, b.cfg.Groups["admin"], name)
	}

	var choices []string
	for _, opt := range b.commands["group"].def.Options {
		for _, c := range opt.Choices {
			choices = append(choices, c.Name)
		}
	}
	assert.Equal(t, []string{"admin", "blacklist", "user"}, choices)
}

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte{0xAA, 0xBB, 0xCC}))
	assert.Equal(t, []byte{0x03, 0x00, 0xAA, 0xBB, 0xCC}, buf.Bytes())
}

func TestRecorderTracksPerSpeaker(t *testing.T) {
	rec := newRecorder(1001, "2002", nil)
	packets := make(chan *discordgo.Packet)
	go rec.run(packets)

	rec.speaking(nil, &discordgo.VoiceSpeakingUpdate{UserID: "42", SSRC: 1})
	packets <- &discordgo.Packet{SSRC: 1, Opus: []byte{1, 2}}
	packets <- &discordgo.Packet{SSRC: 2, Opus: []byte{3}}
	packets <- &discordgo.Packet{SSRC: 1, Opus: []byte{4}}
	packets <- &discordgo.Packet{SSRC: 1} // silence carries no frame

	recordings := rec.stop()
	require.Len(t, recordings, 2)

	assert.Equal(t, "42.dca", recordings[0].Name)
	assert.Equal(t, "42", recordings[0].UserID)
	assert.Equal(t, 2, recordings[0].Frames)
	assert.Equal(t, []byte{2, 0, 1, 2, 1, 0, 4}, recordings[0].Data)

	assert.Equal(t, "ssrc-2.dca", recordings[1].Name)
	assert.Empty(t, recordings[1].UserID)
	assert.Equal(t, 1, recordings[1].Frames)

	// A second stop is harmless.
	assert.Len(t, rec.stop(), 2)
}

func TestRecorderStopsWhenChannelCloses(t *testing.T) {
	rec := newRecorder(1001, "2002", nil)
	packets := make(chan *discordgo.Packet, 1)
	packets <- &discordgo.Packet{SSRC: 5, Opus: bytes.Repeat([]byte{7}, 300)}
	close(packets)

	go rec.run(packets)
	recordings := rec.stop()
	require.Len(t, recordings, 1)

	var length int16
	require.NoError(t, binary.Read(bytes.NewReader(recordings[0].Data), binary.LittleEndian, &length))
	assert.Equal(t, int16(300), length)
}

func TestVoiceStatus(t *testing.T) {
	assert.Equal(t, "Not connected", voiceDisconnected.String())
	assert.Equal(t, "Idle", voiceIdle.String())
	assert.Equal(t, "Recording", voiceRecording.String())

	b := newTestBot(t)
	assert.Equal(t, voiceDisconnected, b.voiceStatus(b.session, testGuildID))

	b.session.VoiceConnections[testGuildID] = &discordgo.VoiceConnection{GuildID: testGuildID}
	assert.Equal(t, voiceIdle, b.voiceStatus(b.session, testGuildID))

	b.recorders[testGuildID] = newRecorder(1001, "2002", nil)
	assert.Equal(t, voiceRecording, b.voiceStatus(b.session, testGuildID))
}

func TestPanelContent(t *testing.T) {
	b := newTestBot(t)
	g := b.guilds.Ensure(1001, "Alpha")
	g.SetVoiceVolume(150)

	content := b.panelContent(b.session, 1001, testGuildID)
	assert.Contains(t, content, "**Zeta-Bot**")
	assert.Contains(t, content, "Status: Not connected")
	assert.Contains(t, content, "Channel: -")
	assert.Contains(t, content, "Volume: 150%")
}

type countingView struct {
	n atomic.Int32
}

func (v *countingView) Refresh() error {
	v.n.Add(1)
	return nil
}

func TestDebounceRefreshCoalesces(t *testing.T) {
	b := newTestBot(t)
	b.debounceInterval = 20 * time.Millisecond

	view := &countingView{}
	b.guilds.Ensure(1001, "Alpha").AttachView(registry.ListView, view)

	for range 5 {
		b.debounceRefresh(1001, testGuildID)
	}

	assert.Eventually(t, func() bool { return view.n.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * b.debounceInterval)
	assert.Equal(t, int32(1), view.n.Load())
}

func TestChannelEmpty(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{
		ID: testGuildID,
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: testGuildID, UserID: testBotID, ChannelID: "3003"},
			{GuildID: testGuildID, UserID: "42", ChannelID: "3004"},
		},
	}))

	b := newTestBot(t)
	assert.True(t, b.channelEmpty(s, testGuildID, "3003"))
	assert.False(t, b.channelEmpty(s, testGuildID, "3004"))
	assert.False(t, b.channelEmpty(s, "unknown", "3003"))
}

func TestFirstTextChannel(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{
		ID: testGuildID,
		Channels: []*discordgo.Channel{
			{ID: "10", GuildID: testGuildID, Type: discordgo.ChannelTypeGuildVoice, Position: 0},
			{ID: "11", GuildID: testGuildID, Type: discordgo.ChannelTypeGuildText, Position: 3},
			{ID: "12", GuildID: testGuildID, Type: discordgo.ChannelTypeGuildText, Position: 1},
		},
	}))

	id, ok := firstTextChannel(s, testGuildID)
	require.True(t, ok)
	assert.Equal(t, "12", id)

	_, ok = firstTextChannel(s, "unknown")
	assert.False(t, ok)
}

func TestNewScheduler(t *testing.T) {
	cfg := config.Default()
	cfg.AutoReboot = true
	cfg.ARTimezone = "UTC"

	c, err := newScheduler(cfg, func() {}, func() {})
	require.NoError(t, err)
	entries := c.Entries()
	require.Len(t, entries, 2)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var next []time.Time
	for _, e := range entries {
		next = append(next, e.Schedule.Next(from))
	}
	assert.ElementsMatch(t, []time.Time{
		time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 3, 55, 0, 0, time.UTC),
	}, next)

	cfg.ARReminder = false
	c, err = newScheduler(cfg, func() {}, func() {})
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	cfg.ARTimezone = "Nowhere/Special"
	_, err = newScheduler(cfg, func() {}, func() {})
	assert.Error(t, err)
}

type fakeRestarter struct {
	calls int
}

func (f *fakeRestarter) Restart() error {
	f.calls++
	return nil
}

func TestAutoRebootSavesAndRestarts(t *testing.T) {
	b := newTestBot(t)
	restarter := &fakeRestarter{}
	b.restarter = restarter

	g := b.guilds.Ensure(1001, "Alpha")
	path := registry.RecordPath(b.guilds.Root(), g.ID())
	require.NoError(t, os.Remove(path))

	b.autoReboot()

	assert.Equal(t, 1, restarter.calls)
	assert.FileExists(t, path)
	assert.Equal(t, filepath.Join(b.cfg.DataRoot, "guilds", "1001", "1001.json"), path)
}
