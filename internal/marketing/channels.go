package marketing

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// ChannelSpec holds a channel's publishing constraints.
type ChannelSpec struct {
	CharacterLimit int         `json:"characterLimit"`
	HashtagCount   int         `json:"hashtagCount"`
	ContentType    ContentType `json:"contentType"`
	PeakTimes      []string    `json:"peakTimes"`
}

var channelSpecs = map[Channel]ChannelSpec{
	Twitter:   {CharacterLimit: 280, HashtagCount: 2, ContentType: Post, PeakTimes: []string{"12:00", "15:00", "18:00"}},
	Instagram: {CharacterLimit: 2200, HashtagCount: 30, ContentType: Image, PeakTimes: []string{"11:00", "14:00", "19:00"}},
	Facebook:  {CharacterLimit: 63206, HashtagCount: 3, ContentType: Post, PeakTimes: []string{"13:00", "16:00", "20:00"}},
	TikTok:    {CharacterLimit: 2200, HashtagCount: 5, ContentType: Video, PeakTimes: []string{"14:00", "19:00", "21:00"}},
	LinkedIn:  {CharacterLimit: 3000, HashtagCount: 3, ContentType: Article, PeakTimes: []string{"10:00", "13:00", "17:00"}},
	Telegram:  {CharacterLimit: 4096, HashtagCount: 0, ContentType: Message, PeakTimes: []string{"09:00", "12:00", "15:00", "18:00"}},
	WhatsApp:  {CharacterLimit: 1000, HashtagCount: 0, ContentType: Message, PeakTimes: []string{"10:00", "14:00", "20:00"}},
	Blog:      {CharacterLimit: 50000, HashtagCount: 0, ContentType: Article, PeakTimes: []string{"09:00", "11:00", "15:00"}},
	Email:     {CharacterLimit: 10000, HashtagCount: 0, ContentType: Article, PeakTimes: []string{"10:00", "14:00", "16:00"}},
}

// AllChannels returns the valid channels in a stable order.
func AllChannels() []Channel {
	return []Channel{Blog, Twitter, LinkedIn, Instagram, Facebook, TikTok, Telegram, WhatsApp, Email}
}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	_, ok := channelSpecs[c]
	return ok
}

// LookupSpec returns the spec for c and whether c is known.
func LookupSpec(c Channel) (ChannelSpec, bool) {
	s, ok := channelSpecs[c]
	if !ok {
		return ChannelSpec{}, false
	}
	return s.clone(), true
}

// SpecFor returns the spec for c. Unknown channels get the blog spec.
func SpecFor(c Channel) ChannelSpec {
	if s, ok := LookupSpec(c); ok {
		return s
	}
	slog.Warn("unknown channel, using blog defaults", "channel", string(c))
	return channelSpecs[Blog].clone()
}

func (s ChannelSpec) clone() ChannelSpec {
	s.PeakTimes = slices.Clone(s.PeakTimes)
	return s
}

// InvalidChannelsError lists channel names that are not recognised.
type InvalidChannelsError struct {
	Invalid []string
}

func (e *InvalidChannelsError) Error() string {
	return fmt.Sprintf("invalid channels: %s", strings.Join(e.Invalid, ", "))
}

// ParseChannels converts names to channels, rejecting any unknown name.
func ParseChannels(names []string) ([]Channel, error) {
	out := make([]Channel, 0, len(names))
	var invalid []string
	for _, n := range names {
		c := Channel(strings.ToLower(strings.TrimSpace(n)))
		if !c.Valid() {
			invalid = append(invalid, n)
			continue
		}
		out = append(out, c)
	}
	if len(invalid) > 0 {
		return nil, &InvalidChannelsError{Invalid: invalid}
	}
	return out, nil
}
