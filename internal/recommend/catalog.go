package recommend

import "bingeworthy/searchservice/internal/domain"

// categoryCatalog holds the curated fallback picks served when the
// inference model is unavailable or returns nothing usable. Entries within
// a category are kept sorted by confidence descending.
var categoryCatalog = map[string][]domain.Recommendation{
	"horror": {
		{ID: "rec-horror-1", Title: "The Shining", Description: "A family heads to an isolated hotel where a sinister presence drives the father to violence.", Category: "horror", Confidence: 0.97},
		{ID: "rec-horror-2", Title: "Hereditary", Description: "A grieving family is haunted by tragic and disturbing occurrences.", Category: "horror", Confidence: 0.94},
		{ID: "rec-horror-3", Title: "The Exorcist", Description: "A mother seeks help for her daughter from two priests.", Category: "horror", Confidence: 0.92},
		{ID: "rec-horror-4", Title: "Alien", Description: "The crew of a commercial spacecraft encounters a deadly lifeform.", Category: "horror", Confidence: 0.9},
		{ID: "rec-horror-5", Title: "Get Out", Description: "A young man uncovers a disturbing secret when he meets his girlfriend's family.", Category: "horror", Confidence: 0.88},
		{ID: "rec-horror-6", Title: "The Haunting of Hill House", Description: "Siblings confront the ghosts of their past in the house they grew up in.", Category: "horror", Confidence: 0.85},
	},
	"comedy": {
		{ID: "rec-comedy-1", Title: "The Grand Budapest Hotel", Description: "A concierge and his lobby boy get tangled in a battle over a family fortune.", Category: "comedy", Confidence: 0.95},
		{ID: "rec-comedy-2", Title: "Superbad", Description: "Two co-dependent seniors try to make the most of their last weeks of high school.", Category: "comedy", Confidence: 0.91},
		{ID: "rec-comedy-3", Title: "What We Do in the Shadows", Description: "Vampire roommates struggle with the mundane side of eternal life.", Category: "comedy", Confidence: 0.9},
		{ID: "rec-comedy-4", Title: "Brooklyn Nine-Nine", Description: "A talented but carefree detective gets a new no-nonsense captain.", Category: "comedy", Confidence: 0.87},
		{ID: "rec-comedy-5", Title: "Groundhog Day", Description: "A weatherman relives the same day over and over again.", Category: "comedy", Confidence: 0.86},
		{ID: "rec-comedy-6", Title: "Ted Lasso", Description: "An American football coach takes over an English soccer club.", Category: "comedy", Confidence: 0.84},
	},
	"action": {
		{ID: "rec-action-1", Title: "Mad Max: Fury Road", Description: "A woman rebels against a tyrannical ruler in a post-apocalyptic wasteland.", Category: "action", Confidence: 0.96},
		{ID: "rec-action-2", Title: "John Wick", Description: "An ex-hitman comes out of retirement to track down the gangsters who wronged him.", Category: "action", Confidence: 0.93},
		{ID: "rec-action-3", Title: "Die Hard", Description: "A New York cop battles terrorists in a Los Angeles skyscraper.", Category: "action", Confidence: 0.91},
		{ID: "rec-action-4", Title: "Mission: Impossible - Fallout", Description: "Ethan Hunt races against time after a mission goes wrong.", Category: "action", Confidence: 0.89},
		{ID: "rec-action-5", Title: "The Raid", Description: "A SWAT team becomes trapped in a tenement run by a ruthless mobster.", Category: "action", Confidence: 0.87},
		{ID: "rec-action-6", Title: "Heat", Description: "A group of professional bank robbers is hunted by an obsessive detective.", Category: "action", Confidence: 0.86},
	},
	"drama": {
		{ID: "rec-drama-1", Title: "The Shawshank Redemption", Description: "Two imprisoned men bond over a number of years.", Category: "drama", Confidence: 0.98},
		{ID: "rec-drama-2", Title: "Breaking Bad", Description: "A chemistry teacher turns to manufacturing methamphetamine.", Category: "drama", Confidence: 0.96},
		{ID: "rec-drama-3", Title: "The Godfather", Description: "The aging patriarch of a crime dynasty transfers control to his son.", Category: "drama", Confidence: 0.95},
		{ID: "rec-drama-4", Title: "Succession", Description: "A media dynasty fights for control of the family empire.", Category: "drama", Confidence: 0.9},
		{ID: "rec-drama-5", Title: "Parasite", Description: "A poor family schemes to become employed by a wealthy household.", Category: "drama", Confidence: 0.89},
		{ID: "rec-drama-6", Title: "The Wire", Description: "The Baltimore drug scene seen through the eyes of dealers and police.", Category: "drama", Confidence: 0.88},
	},
	"sci-fi": {
		{ID: "rec-scifi-1", Title: "Blade Runner 2049", Description: "A young blade runner unearths a secret that could plunge society into chaos.", Category: "sci-fi", Confidence: 0.95},
		{ID: "rec-scifi-2", Title: "Arrival", Description: "A linguist works with the military to communicate with alien lifeforms.", Category: "sci-fi", Confidence: 0.93},
		{ID: "rec-scifi-3", Title: "Interstellar", Description: "Explorers travel through a wormhole in search of a new home for humanity.", Category: "sci-fi", Confidence: 0.92},
		{ID: "rec-scifi-4", Title: "The Expanse", Description: "A detective and a ship's crew unravel a conspiracy across the solar system.", Category: "sci-fi", Confidence: 0.89},
		{ID: "rec-scifi-5", Title: "Dune", Description: "A noble family becomes embroiled in a war over a desert planet's spice.", Category: "sci-fi", Confidence: 0.88},
		{ID: "rec-scifi-6", Title: "Severance", Description: "Office workers have their memories surgically divided between work and home.", Category: "sci-fi", Confidence: 0.86},
	},
	"thriller": {
		{ID: "rec-thriller-1", Title: "Se7en", Description: "Two detectives hunt a serial killer who uses the seven deadly sins.", Category: "thriller", Confidence: 0.95},
		{ID: "rec-thriller-2", Title: "Gone Girl", Description: "A man becomes the prime suspect when his wife disappears.", Category: "thriller", Confidence: 0.92},
		{ID: "rec-thriller-3", Title: "Prisoners", Description: "A father takes matters into his own hands after his daughter goes missing.", Category: "thriller", Confidence: 0.9},
		{ID: "rec-thriller-4", Title: "Mindhunter", Description: "FBI agents interview imprisoned serial killers to solve ongoing cases.", Category: "thriller", Confidence: 0.88},
		{ID: "rec-thriller-5", Title: "No Country for Old Men", Description: "A hunter stumbles on a drug deal gone wrong and two million dollars.", Category: "thriller", Confidence: 0.87},
		{ID: "rec-thriller-6", Title: "Zodiac", Description: "A cartoonist becomes obsessed with tracking down the Zodiac killer.", Category: "thriller", Confidence: 0.85},
	},
	"romance": {
		{ID: "rec-romance-1", Title: "Before Sunrise", Description: "Two strangers meet on a train and spend one night in Vienna.", Category: "romance", Confidence: 0.93},
		{ID: "rec-romance-2", Title: "Eternal Sunshine of the Spotless Mind", Description: "A couple erases each other from their memories.", Category: "romance", Confidence: 0.92},
		{ID: "rec-romance-3", Title: "Pride & Prejudice", Description: "Sparks fly between a spirited young woman and a proud gentleman.", Category: "romance", Confidence: 0.89},
		{ID: "rec-romance-4", Title: "Her", Description: "A lonely writer develops a relationship with an operating system.", Category: "romance", Confidence: 0.87},
		{ID: "rec-romance-5", Title: "Normal People", Description: "The complex relationship of two Irish teenagers into adulthood.", Category: "romance", Confidence: 0.85},
		{ID: "rec-romance-6", Title: "La La Land", Description: "A jazz pianist and an aspiring actress fall in love in Los Angeles.", Category: "romance", Confidence: 0.84},
	},
}

// keywordCategories routes prompts that never name a genre outright. Each
// key matches when the prompt contains it.
var keywordCategories = map[string]string{
	"scary":           "horror",
	"spooky":          "horror",
	"ghost":           "horror",
	"funny":           "comedy",
	"laugh":           "comedy",
	"hilarious":       "comedy",
	"explosion":       "action",
	"fight":           "action",
	"adrenaline":      "action",
	"emotional":       "drama",
	"cry":             "drama",
	"space":           "sci-fi",
	"sci fi":          "sci-fi",
	"scifi":           "sci-fi",
	"science fiction": "sci-fi",
	"future":          "sci-fi",
	"robot":           "sci-fi",
	"suspense":        "thriller",
	"detective":       "thriller",
	"murder":          "thriller",
	"crime":           "thriller",
	"love":            "romance",
	"romantic":        "romance",
	"date night":      "romance",
}
