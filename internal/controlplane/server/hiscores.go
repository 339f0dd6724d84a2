package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultHiscoresURL = "https://secure.runescape.com/m=hiscore_oldschool/index_lite.ws"

// skillOrder matches the line order of the hiscores CSV feed.
var skillOrder = []string{
	"overall", "attack", "defence", "strength", "hitpoints", "ranged",
	"prayer", "magic", "cooking", "woodcutting", "fletching", "fishing",
	"firemaking", "crafting", "smithing", "mining", "herblore", "agility",
	"thieving", "slayer", "farming", "runecraft", "hunter", "construction",
}

type skillEntry struct {
	Rank  int64 `json:"rank"`
	Level int64 `json:"level"`
	XP    int64 `json:"xp"`
}

type hiscoresResult struct {
	Meta   map[string]string     `json:"meta"`
	Skills map[string]skillEntry `json:"skills"`
}

func (s *Server) fetchHiscores(ctx context.Context, player string) (*hiscoresResult, error) {
	resp, err := resty.New().
		SetTimeout(10*time.Second).
		R().
		SetContext(ctx).
		SetQueryParam("player", player).
		Get(s.cfg.HiscoresURL)
	if err != nil {
		return nil, fmt.Errorf("hiscores fetch: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("hiscores fetch: status %d", resp.StatusCode())
	}
	return parseHiscoresCSV(player, string(resp.Body()))
}

// parseHiscoresCSV decodes the "rank,level,xp" line feed. Lines beyond the
// known skill list (activities, bosses) are ignored.
func parseHiscoresCSV(player, body string) (*hiscoresResult, error) {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) < len(skillOrder) {
		return nil, fmt.Errorf("hiscores: short response, %d lines", len(lines))
	}
	out := &hiscoresResult{
		Meta:   map[string]string{"username": player},
		Skills: map[string]skillEntry{},
	}
	for i, name := range skillOrder {
		parts := strings.Split(strings.TrimSpace(lines[i]), ",")
		if len(parts) < 3 {
			return nil, fmt.Errorf("hiscores: bad line %d: %q", i, lines[i])
		}
		rank, _ := strconv.ParseInt(parts[0], 10, 64)
		level, _ := strconv.ParseInt(parts[1], 10, 64)
		xp, _ := strconv.ParseInt(parts[2], 10, 64)
		out.Skills[name] = skillEntry{Rank: rank, Level: level, XP: xp}
	}
	return out, nil
}

func (s *Server) handleHiscores(w http.ResponseWriter, r *http.Request) {
	player := strings.TrimSpace(r.URL.Query().Get("username"))
	if player == "" {
		player = strings.TrimSpace(r.URL.Query().Get("player"))
	}
	if player == "" {
		writeError(w, 400, "username is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 12*time.Second)
	defer cancel()

	res, err := s.fetchHiscores(ctx, player)
	if err != nil {
		writeError(w, 502, err.Error())
		return
	}
	if res == nil {
		writeError(w, 404, "player not found")
		return
	}
	writeJSON(w, 200, res)
}
