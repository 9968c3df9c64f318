package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/igolaizola/mixtape/pkg/storage"
)

type Config struct {
	Debug  bool
	DBType string
	DBConn string

	Addr        string
	Credentials map[string]string
}

// Serve starts the playlist api.
func Serve(ctx context.Context, cfg *Config) error {
	log.Println("web: server started")
	defer log.Println("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.New(cfg.DBType, cfg.DBConn, cfg.Debug)
	if err != nil {
		return fmt.Errorf("web: couldn't create orm store: %w", err)
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("web: couldn't start orm store: %w", err)
	}
	defer func() { _ = store.Stop() }()

	split := strings.Split(cfg.Addr, ":")
	if len(split) != 2 {
		return fmt.Errorf("web: invalid address: %s", cfg.Addr)
	}
	host := split[0]
	port, err := strconv.Atoi(split[1])
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", split[1])
	}
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: NewRouter(store, cfg.Debug, cfg.Credentials),
	}
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("web: starting server on %s\n", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("web: failed to start server: %v\n", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web: couldn't shutdown server: %w", err)
	}
	return nil
}

type playlistStore interface {
	GetPlaylist(ctx context.Context, id string) (*storage.Playlist, error)
	ListPlaylists(ctx context.Context, page, size int, filter ...storage.Filter) ([]*storage.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	ListSongs(ctx context.Context, page, size int, orderBy string, filter ...storage.Filter) ([]*storage.Song, error)
	CountSongs(ctx context.Context, filter ...storage.Filter) (int64, error)
	GetSong(ctx context.Context, id string) (*storage.Song, error)
	SetSong(ctx context.Context, v *storage.Song) error
	DeleteSong(ctx context.Context, id string) error
}

type Playlist struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Theme     string           `json:"theme"`
	Selector  string           `json:"selector,omitempty"`
	Model     string           `json:"model,omitempty"`
	Count     int              `json:"count"`
	Songs     []map[string]any `json:"songs,omitempty"`
}

type Song struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	Genre  string `json:"genre,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// NewRouter returns the api handler.
func NewRouter(store playlistStore, debug bool, credentials map[string]string) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(60 * time.Second))
	if len(credentials) > 0 {
		mux.Use(middleware.BasicAuth("private", credentials))
	}

	mux.Group(func(r chi.Router) {
		if debug {
			r.Use(middleware.Logger)
		}

		r.Get("/api/playlists", func(w http.ResponseWriter, r *http.Request) {
			page, size := pagination(r)
			ps, err := store.ListPlaylists(r.Context(), page, size)
			if err != nil {
				log.Println("web: couldn't list playlists:", err)
				http.Error(w, fmt.Sprintf("couldn't list playlists: %v", err), http.StatusInternalServerError)
				return
			}
			out := []*Playlist{}
			for _, p := range ps {
				out = append(out, toPlaylist(p))
			}
			writeJSON(w, out)
		})

		r.Get("/api/playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			p, err := store.GetPlaylist(r.Context(), id)
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, fmt.Sprintf("playlist %s not found", id), http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, fmt.Sprintf("couldn't get playlist: %v", err), http.StatusInternalServerError)
				return
			}
			out := toPlaylist(p)
			if err := json.Unmarshal([]byte(p.Songs), &out.Songs); err != nil {
				http.Error(w, fmt.Sprintf("couldn't decode playlist songs: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, out)
		})

		r.Delete("/api/playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if err := store.DeletePlaylist(r.Context(), id); err != nil {
				http.Error(w, fmt.Sprintf("couldn't delete playlist: %v", err), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/api/songs", func(w http.ResponseWriter, r *http.Request) {
			page, size := pagination(r)
			var filters []storage.Filter
			if v := r.URL.Query().Get("artist"); v != "" {
				filters = append(filters, storage.Where("artist LIKE ?", v))
			}
			if v := r.URL.Query().Get("genre"); v != "" {
				filters = append(filters, storage.Where("genre LIKE ?", v))
			}
			songs, err := store.ListSongs(r.Context(), page, size, "artist, title", filters...)
			if err != nil {
				log.Println("web: couldn't list songs:", err)
				http.Error(w, fmt.Sprintf("couldn't list songs: %v", err), http.StatusInternalServerError)
				return
			}
			out := []*Song{}
			for _, s := range songs {
				out = append(out, toSong(s))
			}
			writeJSON(w, out)
		})

		r.Get("/api/songs/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			s, err := store.GetSong(r.Context(), id)
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, fmt.Sprintf("song %s not found", id), http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, fmt.Sprintf("couldn't get song: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, toSong(s))
		})

		r.Put("/api/songs/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			var in Song
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				http.Error(w, fmt.Sprintf("couldn't decode song: %v", err), http.StatusBadRequest)
				return
			}
			if strings.TrimSpace(in.Title) == "" {
				http.Error(w, "title is required", http.StatusBadRequest)
				return
			}
			s, err := store.GetSong(r.Context(), id)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				s = &storage.Song{ID: id}
			case err != nil:
				http.Error(w, fmt.Sprintf("couldn't get song: %v", err), http.StatusInternalServerError)
				return
			}
			s.Title = in.Title
			s.Artist = in.Artist
			s.Album = in.Album
			s.Genre = in.Genre
			s.Year = in.Year
			if err := store.SetSong(r.Context(), s); err != nil {
				http.Error(w, fmt.Sprintf("couldn't set song: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, toSong(s))
		})

		r.Delete("/api/songs/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if err := store.DeleteSong(r.Context(), id); err != nil {
				http.Error(w, fmt.Sprintf("couldn't delete song: %v", err), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/api/songs/count", func(w http.ResponseWriter, r *http.Request) {
			n, err := store.CountSongs(r.Context())
			if err != nil {
				http.Error(w, fmt.Sprintf("couldn't count songs: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, map[string]int64{"count": n})
		})
	})
	return mux
}

func pagination(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size < 1 || size > 500 {
		size = 100
	}
	return page, size
}

func toPlaylist(p *storage.Playlist) *Playlist {
	return &Playlist{
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		Theme:     p.Theme,
		Selector:  p.Selector,
		Model:     p.Model,
		Count:     p.Count,
	}
}

func toSong(s *storage.Song) *Song {
	return &Song{
		ID:     s.ID,
		Title:  s.Title,
		Artist: s.Artist,
		Album:  s.Album,
		Genre:  s.Genre,
		Year:   s.Year,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("web: couldn't encode response:", err)
	}
}
