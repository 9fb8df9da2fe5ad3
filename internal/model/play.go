package model

// Play is a theatrical work in the catalog.  Genres and Actors are
// many-to-many links and may be empty.  Image holds the asset store name of
// the uploaded picture; it is empty until the play's upload endpoint is
// used.
type Play struct {
    ID          uint64  // plays.id
    Title       string  // plays.title
    Description string  // plays.description
    Image       string  // plays.image ("" when no image uploaded)
    Genres      []Genre // via play_genres
    Actors      []Actor // via play_actors
}

// GenreIDs returns the ids of the linked genres in link order.
func (p Play) GenreIDs() []uint64 {
    out := make([]uint64, 0, len(p.Genres))
    for _, g := range p.Genres {
        out = append(out, g.ID)
    }
    return out
}

// ActorIDs returns the ids of the linked actors in link order.
func (p Play) ActorIDs() []uint64 {
    out := make([]uint64, 0, len(p.Actors))
    for _, a := range p.Actors {
        out = append(out, a.ID)
    }
    return out
}

// PlayFilter narrows a play listing.  Filters combine with AND; the ids
// inside GenreIDs or ActorIDs combine with OR.  Zero values disable a
// filter.
type PlayFilter struct {
    Title    string   // case-insensitive substring of plays.title
    GenreIDs []uint64 // play linked to at least one of these genres
    ActorIDs []uint64 // play linked to at least one of these actors
}
