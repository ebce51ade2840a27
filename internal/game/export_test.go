package game

// Test-only accessors so the external game_test package can pin room state
// for scripted scenarios without exporting internals.

const (
	TestHiddenSuit  = hiddenSuit
	TestMaxMessages = maxMessages
)

func (r *Room) TestLock()   { r.mu.Lock() }
func (r *Room) TestUnlock() { r.mu.Unlock() }

func (r *Room) TestPlayerByID(id string) *Player { return r.playerByID(id) }

func (r *Room) TestSetPhase(p Phase) { r.phase = p }

func (r *Room) TestSetTurn(actorID, targetID string) {
	r.currentTurnID = actorID
	r.targetID = targetID
}
