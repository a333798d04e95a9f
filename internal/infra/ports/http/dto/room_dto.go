package dto

type RoomPeersResponse struct {
	Room  string   `json:"room"`
	Peers []string `json:"peers"`
}
