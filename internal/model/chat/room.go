package chat

// RoomCodeLength is the length of the shareable room code.
const RoomCodeLength = 6

// Room identifies a chat channel.
type Room struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

// Title is the human form of the room code, "XXX-XXX".
func (r Room) Title() string {
	return FormatRoomCode(r.Code)
}

// FormatRoomCode inserts the display dash after the third character.
// Codes of unexpected length pass through untouched.
func FormatRoomCode(code string) string {
	if len(code) != RoomCodeLength {
		return code
	}
	return code[:3] + "-" + code[3:]
}
