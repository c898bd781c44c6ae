package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tomz197/sshtargets/internal/draw"
	"github.com/tomz197/sshtargets/internal/game"
	"github.com/tomz197/sshtargets/internal/leaderboard"
	"github.com/tomz197/sshtargets/internal/loop/config"
)

// ASCII art title (figlet "standard" font)
var titleArt = []string{
	` _____  _    ____   ____ _____ _____ ____  `,
	`|_   _|/ \  |  _ \ / ___| ____|_   _/ ___| `,
	`  | | / _ \ | |_) | |  _|  _|   | | \___ \ `,
	`  | |/ ___ \|  _ <| |_| | |___  | |  ___) |`,
	`  |_/_/   \_\_| \_\\____|_____| |_| |____/ `,
}

// drawFrame draws the current frame.
func (c *Client) drawFrame(now time.Time) error {
	// On game state or inactivity transitions, do a full terminal clear
	// so UI elements from the previous state don't persist on screen.
	stateChanged := c.state.GameState != c.state.prevGameState
	inactiveChanged := c.state.isInactive != c.state.wasInactive
	if stateChanged || inactiveChanged {
		c.clearScreen()
		c.state.prevGameState = c.state.GameState
		c.state.wasInactive = c.state.isInactive
	}

	centerX := c.termWidth / 2
	centerY := c.termHeight / 2

	switch {
	case c.state.GameState == GameStateShutdown:
		c.drawShutdownScreen(centerX, centerY)
	case c.state.isInactive:
		c.drawInactivityScreen(now, centerX, centerY)
	case c.state.GameState == GameStateStart:
		c.drawStartScreen(now, centerX, centerY)
	case c.state.GameState == GameStatePlaying:
		c.drawPlaying(now)
	case c.state.GameState == GameStateNameEntry:
		c.drawNameEntryScreen(centerX, centerY)
	}

	return c.chunkWriter.Flush()
}

func (c *Client) clearScreen() {
	draw.ClearScreen(c.chunkWriter)
	c.canvas.ForceRedraw()
	c.state.lastPanel = ""
}

// writeCentered writes s centered on centerX. width is the visible width
// when s carries escape sequences, 0 otherwise.
func (c *Client) writeCentered(centerX, row int, s string, width int) {
	if width == 0 {
		width = len([]rune(s))
	}
	c.chunkWriter.WriteAt(max(centerX-width/2, 1), row, s)
}

// blinkOn alternates at hz.
func blinkOn(now time.Time, hz float64) bool {
	period := int64(1000 / (2 * hz))
	return now.UnixMilli()/period%2 == 0
}

// drawInactivityScreen draws the inactivity warning screen.
func (c *Client) drawInactivityScreen(now time.Time, centerX, centerY int) {
	title := "INACTIVITY WARNING"
	c.writeCentered(centerX, centerY-2, draw.ColorBrightRed+title+draw.ColorReset, len(title))

	msg := fmt.Sprintf(
		"You have been inactive for too long. You will be disconnected in %3d seconds.",
		int(config.InactivityDisconnectUser-now.Sub(c.lastInput).Seconds()),
	)
	c.writeCentered(centerX, centerY, msg, 0)

	c.writeCentered(centerX, centerY+2, "Press any key to continue", 0)
}

// drawStartScreen draws the title screen with the scoreboard.
func (c *Client) drawStartScreen(now time.Time, centerX, centerY int) {
	id, ok := c.highlighted(now)
	panel := c.panel.Render(c.scores.View(), id, ok)
	if panel != c.state.lastPanel {
		c.clearScreen()
		c.state.lastPanel = panel
	}
	panelLines := strings.Split(panel, "\n")

	height := len(titleArt) + 7 + len(panelLines)
	row := max(centerY-height/2, 1)

	titleWidth := len(titleArt[0])
	for i, line := range titleArt {
		c.writeCentered(centerX, row+i, draw.ColorCyan+line+draw.ColorReset, titleWidth)
	}
	row += len(titleArt) + 1

	c.writeCentered(centerX, row, fmt.Sprintf("Click the moving target as often as you can in %d seconds.", config.RoundSeconds), 0)
	c.writeCentered(centerX, row+1, "It speeds up and shrinks with every hit.", 0)
	row += 3

	var status string
	if c.state.hasLastScore {
		status = fmt.Sprintf("Last round: %d", c.state.lastScore)
	} else if c.username != "" {
		status = "Welcome, " + leaderboard.NormalizeName(c.username) + "!"
	}
	if status != "" {
		c.writeCentered(centerX, row, draw.ColorGreen+status+draw.ColorReset, len([]rune(status)))
	}
	row++

	// Blinking start prompt
	prompt := ">>  Press SPACE to Start  <<"
	if now.UnixMilli()/600%2 != 0 {
		prompt = strings.Repeat(" ", len(prompt))
	}
	c.writeCentered(centerX, row, prompt, 0)
	row += 2

	boxWidth := lipgloss.Width(panel)
	for i, line := range panelLines {
		c.writeCentered(centerX, row+i, line, boxWidth)
	}

	c.drawFooter("SPACE start | R refresh scores | Q quit")
}

// drawFooter writes a hint on the last row and the player count on the right.
func (c *Client) drawFooter(hint string) {
	cw := c.chunkWriter
	cw.WriteAt(2, c.termHeight, draw.ColorDim+hint+draw.ColorReset)
	players := fmt.Sprintf("Players: %-4d", c.server.GetSnapshot().Players)
	cw.WriteAt(c.termWidth-len(players)-1, c.termHeight, players)
}

// drawPlaying draws the target and the HUD.
// Text fields use fixed-width formatting so shrinking values don't leave
// residual characters on screen.
func (c *Client) drawPlaying(now time.Time) {
	st := c.board.State()

	color := draw.ColorRed
	if st.TimeRemaining <= 5 && !blinkOn(now, config.TargetBlinkHz) {
		color = draw.ColorYellow
	}
	c.canvas.Clear()
	c.canvas.SetColor(color)
	c.canvas.FillCircle(st.Position.X, st.Position.Y, game.TargetRadius(st.Score), config.TargetPolySides)
	c.canvas.Render(c.chunkWriter)
	c.canvas.RenderBorder(c.chunkWriter)

	cw := c.chunkWriter
	left := c.canvas.OffsetCol() + 1
	right := c.canvas.OffsetCol() + c.canvas.TerminalWidth()
	scoreText := fmt.Sprintf("Score: %-5d", st.Score)
	cw.WriteAt(left, 1, draw.ColorBold+scoreText+draw.ColorReset)
	timeText := fmt.Sprintf("Time: %2ds", st.TimeRemaining)
	cw.WriteAt(max(right-len(timeText)+1, 1), 1, timeText)

	c.drawFooter("Click the target | Esc ends the round")
}

// drawNameEntryScreen asks for the name to store with the finished round.
func (c *Client) drawNameEntryScreen(centerX, centerY int) {
	title := "TIME'S UP!"
	c.writeCentered(centerX, centerY-4, draw.ColorBold+title+draw.ColorReset, len(title))
	c.writeCentered(centerX, centerY-2, fmt.Sprintf("You scored %d", c.state.finalScore), 0)
	c.writeCentered(centerX, centerY, "Enter your name:", 0)

	// One extra cell for the cursor.
	fieldWidth := config.MaxUsernameLength + 1
	var field string
	if len(c.state.nameBuf) == 0 {
		field = "_" + draw.ColorDim + fmt.Sprintf("%-*s", fieldWidth-1, leaderboard.DefaultName) + draw.ColorReset
	} else {
		field = fmt.Sprintf("%-*s", fieldWidth, string(c.state.nameBuf)+"_")
	}
	c.writeCentered(centerX, centerY+1, "[ "+field+" ]", fieldWidth+4)

	c.writeCentered(centerX, centerY+3, "Enter to save | Esc to skip", 0)
}

// drawShutdownScreen draws the server shutdown notification screen.
func (c *Client) drawShutdownScreen(centerX, centerY int) {
	title := "SERVER SHUTTING DOWN"
	c.writeCentered(centerX, centerY-3, draw.ColorBrightRed+title+draw.ColorReset, len(title))

	c.writeCentered(centerX, centerY-1, "The server is restarting for maintenance.", 0)
	c.writeCentered(centerX, centerY, "Please reconnect in a moment.", 0)

	remaining := int(c.state.shutdownTimer) + 1
	c.writeCentered(centerX, centerY+2, fmt.Sprintf("Disconnecting in %2d seconds...", remaining), 0)

	c.writeCentered(centerX, centerY+4, "Press Q to disconnect now", 0)
}
