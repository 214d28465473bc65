package bot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// recorder collects the Opus frames received on a voice connection, one
// track per speaker.
type recorder struct {
	id        uuid.UUID
	guild     int64
	channelID string // text channel the files are posted to
	vc        *discordgo.VoiceConnection
	startedAt time.Time

	mu     sync.Mutex
	tracks map[uint32]*track
	users  map[uint32]string // SSRC -> user ID

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

type track struct {
	buf    bytes.Buffer
	frames int
}

// recording is the finished audio of one speaker, encoded as DCA.
type recording struct {
	UserID string
	Name   string
	Data   []byte
	Frames int
}

func newRecorder(guild int64, channelID string, vc *discordgo.VoiceConnection) *recorder {
	return &recorder{
		id:        uuid.New(),
		guild:     guild,
		channelID: channelID,
		vc:        vc,
		startedAt: time.Now(),
		tracks:    make(map[uint32]*track),
		users:     make(map[uint32]string),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// run consumes packets until stop is called or the channel is closed.
func (r *recorder) run(packets <-chan *discordgo.Packet) {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case p, ok := <-packets:
			if !ok {
				return
			}
			r.add(p)
		}
	}
}

func (r *recorder) add(p *discordgo.Packet) {
	if p == nil || len(p.Opus) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracks[p.SSRC]
	if !ok {
		t = &track{}
		r.tracks[p.SSRC] = t
	}
	if err := writeFrame(&t.buf, p.Opus); err == nil {
		t.frames++
	}
}

// speaking maps SSRCs to users as Discord announces them.
func (r *recorder) speaking(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[uint32(vs.SSRC)] = vs.UserID
}

// stop ends the recording and returns one file per speaker, ordered by
// name. Tracks of the same user are joined.
func (r *recorder) stop() []recording {
	r.stopOnce.Do(func() { close(r.quit) })
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()

	byName := make(map[string]*recording)
	ssrcs := make([]uint32, 0, len(r.tracks))
	for ssrc := range r.tracks {
		ssrcs = append(ssrcs, ssrc)
	}
	slices.Sort(ssrcs)

	for _, ssrc := range ssrcs {
		t := r.tracks[ssrc]
		userID := r.users[ssrc]
		name := fmt.Sprintf("ssrc-%d.dca", ssrc)
		if userID != "" {
			name = userID + ".dca"
		}

		rec, ok := byName[name]
		if !ok {
			rec = &recording{UserID: userID, Name: name}
			byName[name] = rec
		}
		rec.Data = append(rec.Data, t.buf.Bytes()...)
		rec.Frames += t.frames
	}

	out := make([]recording, 0, len(byName))
	for _, rec := range byName {
		out = append(out, *rec)
	}
	slices.SortFunc(out, func(a, b recording) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// writeFrame appends one DCA frame: the little-endian int16 length
// followed by the Opus payload.
func writeFrame(w io.Writer, opus []byte) error {
	if err := binary.Write(w, binary.LittleEndian, int16(len(opus))); err != nil {
		return err
	}
	_, err := w.Write(opus)
	return err
}

// startRecording attaches a recorder to vc. It reports false when the guild
// is already being recorded.
func (b *Bot) startRecording(guild int64, guildID, channelID string, vc *discordgo.VoiceConnection) (*recorder, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.recorders[guildID]; ok {
		return nil, false
	}

	rec := newRecorder(guild, channelID, vc)
	b.recorders[guildID] = rec
	vc.AddHandler(rec.speaking)
	go rec.run(vc.OpusRecv)
	return rec, true
}

// finishRecording stops the guild's recorder, leaves voice and posts the
// audio files to the channel the recording was started from.
func (b *Bot) finishRecording(s *discordgo.Session, guildID string) bool {
	b.mu.Lock()
	rec, ok := b.recorders[guildID]
	delete(b.recorders, guildID)
	b.mu.Unlock()
	if !ok {
		return false
	}

	recordings := rec.stop()
	b.log.Infof("Recording %s in guild %s finished after %s with %d tracks",
		rec.id, guildID, time.Since(rec.startedAt).Round(time.Second), len(recordings))

	if err := rec.vc.Disconnect(); err != nil {
		b.log.Warnf("Unable to leave voice in guild %s: %v", guildID, err)
	}

	mentions := make([]string, 0, len(recordings))
	files := make([]*discordgo.File, 0, len(recordings))
	for _, r := range recordings {
		if r.UserID != "" {
			mentions = append(mentions, fmt.Sprintf("<@%s>", r.UserID))
		}
		files = append(files, &discordgo.File{
			Name:        r.Name,
			ContentType: "application/octet-stream",
			Reader:      bytes.NewReader(r.Data),
		})
	}

	_, err := s.ChannelMessageSendComplex(rec.channelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("finished recording audio for: %s.", strings.Join(mentions, ", ")),
		Files:   files,
	})
	if err != nil {
		b.log.Errorf("Unable to upload recording %s: %v", rec.id, err)
	}

	b.refreshGuildView(rec.guild)
	return true
}
