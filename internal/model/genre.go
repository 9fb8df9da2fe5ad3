package model

// Genre labels plays (Drama, Comedy, ...).
type Genre struct {
    ID   uint64 // genres.id
    Name string // genres.name
}
