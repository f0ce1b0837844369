package search

import (
	"math"
	"strings"

	"golang.org/x/text/language"

	"bingeworthy/searchservice/internal/catalog/tmdb"
	"bingeworthy/searchservice/internal/domain"
)

const (
	placeholderPosterURL  = "https://via.placeholder.com/500x750?text=No+Poster"
	defaultDescription    = "No description available"
	defaultMovieRuntime   = 120
	defaultShowRuntime    = 45
	defaultCountry        = "US"
	defaultLanguage       = "EN"
	defaultReleasedStatus = "released"
	unknownGenre          = "Unknown"
)

// genreNames maps TMDB genre ids to display names. Movie and TV ids do not
// overlap, so one table covers both kinds. Ids missing from the table are
// dropped rather than surfaced as numbers.
var genreNames = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
	10759: "Action & Adventure",
	10762: "Kids",
	10763: "News",
	10764: "Reality",
	10765: "Sci-Fi & Fantasy",
	10766: "Soap",
	10767: "Talk",
	10768: "War & Politics",
}

// normalizeRecord converts one raw catalog row into the canonical content
// shape. Missing upstream fields get stable defaults so downstream filters
// and cards never see empty values.
func (s *Service) normalizeRecord(record tmdb.Record, kind domain.ContentKind) domain.Content {
	title := strings.TrimSpace(record.DisplayTitle())
	if title == "" {
		title = "Untitled"
	}

	description := strings.TrimSpace(record.Overview)
	if description == "" {
		description = defaultDescription
	}

	posterURL := s.catalog.ImageURL(record.PosterPath)
	if posterURL == "" {
		posterURL = placeholderPosterURL
	}

	runtime := defaultMovieRuntime
	if kind == domain.ContentKindTV {
		runtime = defaultShowRuntime
	}

	country := defaultCountry
	if len(record.OriginCountry) > 0 && strings.TrimSpace(record.OriginCountry[0]) != "" {
		country = strings.ToUpper(strings.TrimSpace(record.OriginCountry[0]))
	}

	rating := round1(record.VoteAverage)

	return domain.Content{
		ID:             record.ID,
		Title:          title,
		Kind:           kind,
		Description:    description,
		Year:           record.Year(),
		PosterURL:      posterURL,
		BackdropURL:    s.catalog.ImageURL(record.BackdropPath),
		Rating:         rating,
		DisplayRating:  rating,
		Genre:          genreFromIDs(record.GenreIDs),
		Platforms:      []string{},
		RuntimeMinutes: runtime,
		Country:        country,
		Language:       canonicalLanguage(record.OriginalLanguage),
		Status:         defaultReleasedStatus,
	}
}

// normalizeDetail converts a full detail record, preferring the richer
// fields detail pages carry over the list-row defaults.
func (s *Service) normalizeDetail(detail tmdb.Detail, kind domain.ContentKind) domain.Content {
	item := s.normalizeRecord(detail.Record, kind)

	if len(detail.Genres) > 0 {
		names := make([]string, 0, len(detail.Genres))
		for _, genre := range detail.Genres {
			if name := strings.TrimSpace(genre.Name); name != "" {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			item.Genre = strings.Join(names, ", ")
		}
	}

	if detail.Runtime > 0 {
		item.RuntimeMinutes = detail.Runtime
	} else if len(detail.EpisodeRunTime) > 0 && detail.EpisodeRunTime[0] > 0 {
		item.RuntimeMinutes = detail.EpisodeRunTime[0]
	}

	if status := strings.TrimSpace(detail.Status); status != "" {
		item.Status = strings.ToLower(status)
	}

	if len(detail.ProductionCountries) > 0 && strings.TrimSpace(detail.ProductionCountries[0].ISO) != "" {
		item.Country = strings.ToUpper(strings.TrimSpace(detail.ProductionCountries[0].ISO))
	}

	for _, member := range detail.Credits.Cast {
		name := strings.TrimSpace(member.Name)
		if name == "" {
			continue
		}
		item.Cast = append(item.Cast, name)
		if len(item.Cast) == 5 {
			break
		}
	}

	for _, video := range detail.Videos.Results {
		if video.Site == "YouTube" && video.Type == "Trailer" && video.Key != "" {
			item.TrailerURL = "https://www.youtube.com/watch?v=" + video.Key
			break
		}
	}

	return item
}

func genreFromIDs(ids []int) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := genreNames[id]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return unknownGenre
	}
	return strings.Join(names, ", ")
}

// canonicalLanguage upper-cases a BCP 47 language code to its base form,
// so "en", "en-US" and "EN" all normalize to "EN".
func canonicalLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return defaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	base, _ := tag.Base()
	return strings.ToUpper(base.String())
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
