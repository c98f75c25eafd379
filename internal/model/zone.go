package model

// Zone is a floor plan or area that contains seats.  ImageID points at the
// blob holding the background image and is nil until one is uploaded.
type Zone struct {
    ID        int64  // zones.id
    ZoneGroup string // zones.zone_group
    Name      string // zones.name
    ImageID   *int64 // zones.iid
}

// ZoneAssign grants a principal a role on a zone.
type ZoneAssign struct {
    ZoneID int64  // zone_assign.zid
    Login  string // zone_assign.login (person or group)
    Role   Role   // zone_assign.zone_role
}

// UserZone is a zone together with the effective role of the viewing
// person.
type UserZone struct {
    Zone
    Role Role
}

// Seat is a single bookable desk inside a zone.
type Seat struct {
    ID      int64  // seats.id
    ZoneID  int64  // seats.zid
    Name    string // seats.name
    X       int    // seats.x
    Y       int    // seats.y
    Enabled bool   // seats.enabled
}

// Blob is an uploaded binary asset.  ETag is the hex SHA-256 of Data.
type Blob struct {
    ID       int64  // blobs.id
    MimeType string // blobs.mimetype
    Data     []byte // blobs.data
    ETag     string // blobs.etag
}
