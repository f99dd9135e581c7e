package csgo_test

import (
	"testing"

	"GameStateServer/internal/service/events"
	"GameStateServer/internal/service/events/csgo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const livePayload = `{
	"provider": {"name": "Counter-Strike: Global Offensive", "appid": 730, "version": 13890, "steamid": "76561198000000001", "timestamp": 1700000123},
	"map": {
		"mode": "competitive", "name": "de_mirage", "phase": "live", "round": 7,
		"team_ct": {"score": 4}, "team_t": {"score": 3}
	},
	"round": {"phase": "live", "bomb": "planted"},
	"player": {
		"steamid": "76561198000000001", "name": "tester", "team": "CT", "activity": "playing",
		"state": {"health": 24, "armor": 80, "helmet": true, "flashed": 120, "burning": 0, "money": 3150, "round_kills": 1},
		"match_stats": {"kills": 9, "assists": 2, "deaths": 5, "mvps": 1, "score": 23},
		"weapons": {
			"weapon_0": {"name": "weapon_knife", "type": "Knife", "state": "holstered"},
			"weapon_1": {"name": "weapon_m4a1_silencer", "type": "Rifle", "state": "active", "ammo_clip": 17}
		}
	}
}`

func mustEvent(t *testing.T, payload string) events.Event {
	t.Helper()
	ev, err := events.ParseEvent([]byte(payload))
	require.NoError(t, err)
	return ev
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := csgo.Summarize(mustEvent(t, livePayload))

	assert.Equal(t, int64(1700000123), s.Timestamp)
	assert.Equal(t, "de_mirage", s.Map)
	assert.Equal(t, "competitive", s.Mode)
	assert.Equal(t, "live", s.MapPhase)
	assert.Equal(t, 7, s.Round)
	assert.Equal(t, "planted", s.Bomb)
	assert.Equal(t, 4, s.ScoreCT)
	assert.Equal(t, 3, s.ScoreT)

	p := s.Player
	assert.Equal(t, "tester", p.Name)
	assert.Equal(t, "CT", p.Team)
	assert.Equal(t, 24, p.Health)
	assert.Equal(t, 80, p.Armor)
	assert.True(t, p.Helmet)
	assert.Equal(t, 3150, p.Money)
	assert.Equal(t, 9, p.Kills)
	assert.Equal(t, 5, p.Deaths)
	assert.Equal(t, "weapon_m4a1_silencer", p.ActiveWeapon)

	assert.Equal(t, csgo.Signals{LowHP: true, Flashed: true, BombPlanted: true}, s.Signals)
	assert.Equal(t,
		"de_mirage live | r7 CT 4:3 T | round=live | bomb=planted | tester (CT) | hp=24 ar=80 $3150 | k/a/d=9/2/5 | weapon=weapon_m4a1_silencer",
		s.String())
}

func TestSummarize_MenuPayload(t *testing.T) {
	t.Parallel()

	// In the main menu the game sends only provider and player identity.
	s := csgo.Summarize(mustEvent(t, `{"provider":{"timestamp":1},"player":{"steamid":"1","name":"tester","activity":"menu"}}`))

	assert.Equal(t, int64(1), s.Timestamp)
	assert.Equal(t, "menu", s.Player.Activity)
	assert.Equal(t, csgo.Signals{}, s.Signals)
	assert.Equal(t, "tester | hp=0 ar=0 $0 | k/a/d=0/0/0", s.String())

	assert.Equal(t, "(empty)", csgo.Summarize(mustEvent(t, `{}`)).String())
}

func TestSummarize_WrongTypes(t *testing.T) {
	t.Parallel()

	s := csgo.Summarize(mustEvent(t, `{"map":"de_dust2","player":{"state":"dead","weapons":[1,2]}}`))
	assert.Equal(t, csgo.Summary{}, s)
}

func TestDiff(t *testing.T) {
	t.Parallel()

	base := csgo.Summarize(mustEvent(t, livePayload))

	tests := []struct {
		name   string
		mutate func(*csgo.Summary)
		want   []string
	}{
		{name: "no change", mutate: func(*csgo.Summary) {}, want: nil},
		{
			name:   "round over",
			mutate: func(s *csgo.Summary) { s.RoundPhase = "over"; s.Bomb = "exploded"; s.ScoreT = 4 },
			want:   []string{"round phase: live -> over", "bomb exploded", "score CT 4:4 T"},
		},
		{
			name:   "next round",
			mutate: func(s *csgo.Summary) { s.Round = 8; s.RoundPhase = "freezetime"; s.Bomb = "" },
			want:   []string{"round 8", "round phase: live -> freezetime"},
		},
		{
			name: "player died",
			mutate: func(s *csgo.Summary) {
				s.Player.Health = 0
				s.Signals.Dead = true
			},
			want: []string{"tester died"},
		},
		{
			name:   "map change",
			mutate: func(s *csgo.Summary) { s.Map = "de_nuke"; s.MapPhase = "warmup" },
			want:   []string{"map: de_nuke", "map phase: live -> warmup"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cur := base
			tt.mutate(&cur)
			assert.Equal(t, tt.want, csgo.Diff(base, cur))
		})
	}
}
