package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"friends-scoreboard/internal/domain"
	"friends-scoreboard/internal/middleware"
	"friends-scoreboard/internal/prefs"
	"friends-scoreboard/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const ScoreboardServicePath = "/scoreboard.v1.ScoreboardService/"

const (
	ProcedureGetLeaderboard      = ScoreboardServicePath + "GetLeaderboard"
	ProcedureGetFeed             = ScoreboardServicePath + "GetFeed"
	ProcedureListPlayers         = ScoreboardServicePath + "ListPlayers"
	ProcedureCreatePlayer        = ScoreboardServicePath + "CreatePlayer"
	ProcedureDeletePlayer        = ScoreboardServicePath + "DeletePlayer"
	ProcedureListGames           = ScoreboardServicePath + "ListGames"
	ProcedureCreateGame          = ScoreboardServicePath + "CreateGame"
	ProcedureDeleteGame          = ScoreboardServicePath + "DeleteGame"
	ProcedureRecordMatch         = ScoreboardServicePath + "RecordMatch"
	ProcedureGetLastParticipants = ScoreboardServicePath + "GetLastParticipants"
	ProcedureSearch              = ScoreboardServicePath + "Search"
	ProcedureGetPrefs            = ScoreboardServicePath + "GetPrefs"
	ProcedureSavePrefs           = ScoreboardServicePath + "SavePrefs"
)

type Empty struct{}

type NameRequest struct {
	Name string `json:"name"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type LastParticipantsRequest struct {
	GameID string `json:"game_id"`
}

type LastParticipantsResponse struct {
	PlayerIDs []string `json:"player_ids"`
}

type ScoreboardServer struct {
	leaderboard *service.LeaderboardService
	feed        *service.FeedService
	roster      *service.RosterService
	matches     *service.MatchService
	prefs       *prefs.Store
	logger      zerolog.Logger
}

func NewScoreboardServer(
	leaderboard *service.LeaderboardService,
	feed *service.FeedService,
	roster *service.RosterService,
	matches *service.MatchService,
	store *prefs.Store,
	logger zerolog.Logger,
) *ScoreboardServer {
	return &ScoreboardServer{
		leaderboard: leaderboard,
		feed:        feed,
		roster:      roster,
		matches:     matches,
		prefs:       store,
		logger:      logger,
	}
}

// Handler returns the mount path and the handler serving every procedure.
func (s *ScoreboardServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(Codec),
		connect.WithInterceptors(s.logging()),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ProcedureGetLeaderboard, connect.NewUnaryHandler(ProcedureGetLeaderboard, s.GetLeaderboard, opts...))
	mux.Handle(ProcedureGetFeed, connect.NewUnaryHandler(ProcedureGetFeed, s.GetFeed, opts...))
	mux.Handle(ProcedureListPlayers, connect.NewUnaryHandler(ProcedureListPlayers, s.ListPlayers, opts...))
	mux.Handle(ProcedureCreatePlayer, connect.NewUnaryHandler(ProcedureCreatePlayer, s.CreatePlayer, opts...))
	mux.Handle(ProcedureDeletePlayer, connect.NewUnaryHandler(ProcedureDeletePlayer, s.DeletePlayer, opts...))
	mux.Handle(ProcedureListGames, connect.NewUnaryHandler(ProcedureListGames, s.ListGames, opts...))
	mux.Handle(ProcedureCreateGame, connect.NewUnaryHandler(ProcedureCreateGame, s.CreateGame, opts...))
	mux.Handle(ProcedureDeleteGame, connect.NewUnaryHandler(ProcedureDeleteGame, s.DeleteGame, opts...))
	mux.Handle(ProcedureRecordMatch, connect.NewUnaryHandler(ProcedureRecordMatch, s.RecordMatch, opts...))
	mux.Handle(ProcedureGetLastParticipants, connect.NewUnaryHandler(ProcedureGetLastParticipants, s.GetLastParticipants, opts...))
	mux.Handle(ProcedureSearch, connect.NewUnaryHandler(ProcedureSearch, s.Search, opts...))
	mux.Handle(ProcedureGetPrefs, connect.NewUnaryHandler(ProcedureGetPrefs, s.GetPrefs, opts...))
	mux.Handle(ProcedureSavePrefs, connect.NewUnaryHandler(ProcedureSavePrefs, s.SavePrefs, opts...))
	return ScoreboardServicePath, mux
}

func (s *ScoreboardServer) logging() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			ev := s.logger.Debug()
			if err != nil {
				ev = s.logger.Warn().Err(err).Str("code", connect.CodeOf(err).String())
			}
			ev.Str("request_id", middleware.GetRequestID(ctx)).
				Str("procedure", req.Spec().Procedure).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("rpc handled")
			return res, err
		}
	}
}

func (s *ScoreboardServer) GetLeaderboard(ctx context.Context, req *connect.Request[service.LeaderboardQuery]) (*connect.Response[service.LeaderboardView], error) {
	view, err := s.leaderboard.Get(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(view), nil
}

func (s *ScoreboardServer) GetFeed(ctx context.Context, req *connect.Request[service.FeedQuery]) (*connect.Response[service.FeedView], error) {
	view, err := s.feed.Recent(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(view), nil
}

func (s *ScoreboardServer) ListPlayers(ctx context.Context, req *connect.Request[service.ListRequest]) (*connect.Response[service.PlayersView], error) {
	view, err := s.roster.ListPlayers(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(view), nil
}

func (s *ScoreboardServer) CreatePlayer(ctx context.Context, req *connect.Request[NameRequest]) (*connect.Response[domain.Player], error) {
	p, err := s.roster.CreatePlayer(ctx, req.Msg.Name)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(p), nil
}

func (s *ScoreboardServer) DeletePlayer(ctx context.Context, req *connect.Request[IDRequest]) (*connect.Response[Empty], error) {
	id, err := requireID(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	if err := s.roster.DeletePlayer(ctx, id); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *ScoreboardServer) ListGames(ctx context.Context, req *connect.Request[service.ListRequest]) (*connect.Response[service.GamesView], error) {
	view, err := s.roster.ListGames(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(view), nil
}

func (s *ScoreboardServer) CreateGame(ctx context.Context, req *connect.Request[NameRequest]) (*connect.Response[domain.Game], error) {
	g, err := s.roster.CreateGame(ctx, req.Msg.Name)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(g), nil
}

func (s *ScoreboardServer) DeleteGame(ctx context.Context, req *connect.Request[IDRequest]) (*connect.Response[Empty], error) {
	id, err := requireID(req.Msg.ID)
	if err != nil {
		return nil, err
	}
	if err := s.roster.DeleteGame(ctx, id); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *ScoreboardServer) RecordMatch(ctx context.Context, req *connect.Request[domain.NewMatch]) (*connect.Response[domain.Match], error) {
	m, err := s.matches.Record(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(m), nil
}

func (s *ScoreboardServer) GetLastParticipants(ctx context.Context, req *connect.Request[LastParticipantsRequest]) (*connect.Response[LastParticipantsResponse], error) {
	ids, err := s.matches.LastParticipants(ctx, req.Msg.GameID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return connect.NewResponse(&LastParticipantsResponse{PlayerIDs: ids}), nil
}

func (s *ScoreboardServer) Search(ctx context.Context, req *connect.Request[SearchRequest]) (*connect.Response[service.SearchResult], error) {
	res, err := s.roster.Search(ctx, req.Msg.Query)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(res), nil
}

func (s *ScoreboardServer) GetPrefs(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[prefs.Prefs], error) {
	p := s.prefs.Get()
	return connect.NewResponse(&p), nil
}

// SavePrefs stores the sanitized preferences and echoes them back.
func (s *ScoreboardServer) SavePrefs(ctx context.Context, req *connect.Request[prefs.Prefs]) (*connect.Response[prefs.Prefs], error) {
	p, err := s.prefs.Save(*req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&p), nil
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, domain.Invalid("id is required"))
	}
	return id, nil
}
