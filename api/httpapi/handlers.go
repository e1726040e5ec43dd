package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"arenakit/core"
)

func (a *api) playerParam(w http.ResponseWriter, r *http.Request, name string) (core.PlayerID, bool) {
	id, err := core.NormalizePlayerID(core.PlayerID(chi.URLParam(r, name)))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_player", err.Error(), nil)
		return "", false
	}
	return id, true
}

func sessionParam(r *http.Request) core.SessionID { return core.SessionID(chi.URLParam(r, "sessionID")) }
func gameParam(r *http.Request) core.GameID       { return core.GameID(chi.URLParam(r, "gameID")) }

func (a *api) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	board, err := a.arena.Ratings.GetLeaderboard(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, board)
}

type ratingRequest struct {
	WinnerID core.PlayerID `json:"winner_id"`
	LoserID  core.PlayerID `json:"loser_id"`
	GameID   string        `json:"game_id"`
}

func (a *api) updateRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.arena.Ratings.UpdateRating(r.Context(), req.WinnerID, req.LoserID, req.GameID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (a *api) getCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.arena.Achievements.Catalog())
}

func (a *api) getAnalytics(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if day == "today" {
		day = time.Now().UTC().Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD or today", nil)
		return
	}
	writeJSON(w, a.opts.Analytics.Snapshot(day))
}

// Players

func (a *api) listPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := a.arena.Ratings.ListPlayers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, players)
}

func (a *api) addPlayer(w http.ResponseWriter, r *http.Request) {
	var p core.Player
	if !a.decodeOrFail(w, r, &p) {
		return
	}
	created, err := a.arena.Ratings.AddPlayer(r.Context(), p)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

// playerRead serves GET routes that only need the path player id.
func playerRead[T any](a *api, fn func(context.Context, core.PlayerID) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.playerParam(w, r, "playerID")
		if !ok {
			return
		}
		v, err := fn(r.Context(), id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, v)
	}
}

func (a *api) getPlayer(w http.ResponseWriter, r *http.Request) {
	playerRead(a, a.arena.Ratings.GetPlayer)(w, r)
}

func (a *api) getPlayerStats(w http.ResponseWriter, r *http.Request) {
	playerRead(a, a.arena.Ratings.GetPlayerStats)(w, r)
}

func (a *api) getPlayerRank(w http.ResponseWriter, r *http.Request) {
	playerRead(a, func(ctx context.Context, id core.PlayerID) (map[string]any, error) {
		rank, err := a.arena.Ratings.GetPlayerRank(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"player_id": id, "rank": rank}, nil
	})(w, r)
}

func (a *api) getPlayerProgress(w http.ResponseWriter, r *http.Request) {
	playerRead(a, a.arena.Ratings.GetPlayerProgress)(w, r)
}

func (a *api) getRatingHistory(w http.ResponseWriter, r *http.Request) {
	playerRead(a, a.arena.Ratings.GetRatingHistory)(w, r)
}

func (a *api) getPlayerSessions(w http.ResponseWriter, r *http.Request) {
	playerRead(a, a.arena.Sessions.PlayerSessions)(w, r)
}

func (a *api) getPlayerAchievements(w http.ResponseWriter, r *http.Request) {
	playerRead(a, a.arena.Achievements.PlayerAchievements)(w, r)
}

func (a *api) getAchievementProgress(w http.ResponseWriter, r *http.Request) {
	playerRead(a, a.arena.Achievements.Progress)(w, r)
}

func (a *api) getPlayerRewards(w http.ResponseWriter, r *http.Request) {
	playerRead(a, a.arena.Achievements.PlayerRewards)(w, r)
}

type experienceRequest struct {
	XP int64 `json:"xp"`
}

func (a *api) addExperience(w http.ResponseWriter, r *http.Request) {
	id, ok := a.playerParam(w, r, "playerID")
	if !ok {
		return
	}
	var req experienceRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	p, err := a.arena.Ratings.AddExperience(r.Context(), id, req.XP)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (a *api) unlockAchievement(w http.ResponseWriter, r *http.Request) {
	id, ok := a.playerParam(w, r, "playerID")
	if !ok {
		return
	}
	ach, err := a.arena.Achievements.Unlock(r.Context(), id, core.AchievementID(chi.URLParam(r, "achievementID")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, ach)
}

func (a *api) awardReward(w http.ResponseWriter, r *http.Request) {
	id, ok := a.playerParam(w, r, "playerID")
	if !ok {
		return
	}
	var reward core.Reward
	if !a.decodeOrFail(w, r, &reward) {
		return
	}
	got, err := a.arena.Achievements.AwardReward(r.Context(), id, reward)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, got)
}

// Sessions

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	list := a.arena.Sessions.ListSessions
	if r.URL.Query().Get("active") == "true" {
		list = a.arena.Sessions.ListActiveSessions
	}
	sessions, err := list(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, sessions)
}

type createSessionRequest struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = a.opts.DefaultMaxPlayers
	}
	sess, err := a.arena.Sessions.CreateSession(r.Context(), req.Name, req.MaxPlayers)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sess)
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.arena.Sessions.GetSession(r.Context(), sessionParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, sess)
}

func (a *api) waitForSession(w http.ResponseWriter, r *http.Request) {
	status := core.SessionStatus(r.URL.Query().Get("status"))
	switch status {
	case core.SessionWaiting, core.SessionActive, core.SessionFinished, core.SessionCancelled:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be waiting, active, finished or cancelled", nil)
		return
	}
	timeout := a.opts.WaitTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_timeout", "timeout must be a positive duration", nil)
			return
		}
		timeout = min(d, a.opts.WaitTimeout)
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	sess, err := a.arena.Sessions.WaitForStatus(ctx, sessionParam(r), status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, sess)
}

type playerRequest struct {
	PlayerID core.PlayerID `json:"player_id"`
}

func (a *api) joinSession(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	sess, err := a.arena.JoinSession(r.Context(), sessionParam(r), req.PlayerID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, sess)
}

func (a *api) leaveSession(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	sess, err := a.arena.Sessions.LeaveSession(r.Context(), sessionParam(r), req.PlayerID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, sess)
}

func (a *api) startSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.arena.Sessions.StartSession(r.Context(), sessionParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, sess)
}

type finishRequest struct {
	WinnerID core.PlayerID `json:"winner_id"`
}

func (a *api) finishSession(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	res, err := a.arena.FinishSession(r.Context(), sessionParam(r), req.WinnerID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

// Games

func (a *api) listGames(w http.ResponseWriter, r *http.Request) {
	list := a.arena.Games.ListGames
	if r.URL.Query().Get("open") == "true" {
		list = a.arena.Games.ListOpenGames
	}
	games, err := list(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, games)
}

type createGameRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	MaxPlayers  int           `json:"max_players"`
	HostID      core.PlayerID `json:"host_id"`
}

func (a *api) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = a.opts.DefaultMaxPlayers
	}
	game, err := a.arena.CreateGame(r.Context(), req.Name, req.Description, req.MaxPlayers, req.HostID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, game)
}

func (a *api) getGame(w http.ResponseWriter, r *http.Request) {
	game, err := a.arena.Games.GetGame(r.Context(), gameParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, game)
}

func (a *api) joinGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	game, err := a.arena.JoinGame(r.Context(), gameParam(r), req.PlayerID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, game)
}

func (a *api) leaveGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	game, deleted, err := a.arena.Games.LeaveGame(r.Context(), gameParam(r), req.PlayerID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"game": game, "deleted": deleted})
}

func (a *api) startGame(w http.ResponseWriter, r *http.Request) {
	game, err := a.arena.Games.StartGame(r.Context(), gameParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, game)
}

func (a *api) finishGame(w http.ResponseWriter, r *http.Request) {
	game, err := a.arena.Games.FinishGame(r.Context(), gameParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, game)
}

func (a *api) getChat(w http.ResponseWriter, r *http.Request) {
	chat, err := a.arena.Games.ChatMessages(r.Context(), gameParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, chat)
}

type chatRequest struct {
	PlayerID core.PlayerID `json:"player_id"`
	Message  string        `json:"message"`
}

func (a *api) sendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	msg, err := a.arena.Games.SendChatMessage(r.Context(), gameParam(r), req.PlayerID, req.Message)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, msg)
}

type gameEventRequest struct {
	Event string `json:"event"`
}

func (a *api) postGameEvent(w http.ResponseWriter, r *http.Request) {
	var req gameEventRequest
	if !a.decodeOrFail(w, r, &req) {
		return
	}
	msg, err := a.arena.Games.PostGameEvent(r.Context(), gameParam(r), req.Event)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, msg)
}
