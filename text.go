package main

import "fmt"

const (
	TextSizeSmall = 14
	TextSizeLarge = 36
	labelOffset   = 28.0 // distance of ship labels from the hull centre
	textColor     = "#ffffff"
)

// Text is an on-screen label.
type Text struct {
	Body  string
	Pos   Vector
	Color string
	Size  int
}

// NewText creates a white label of the given size at (x, y).
func NewText(body string, x, y float64, size int) Text {
	return Text{Body: body, Pos: NewVector(x, y), Color: textColor, Size: size}
}

// ToState converts to protocol state
func (t Text) ToState() TextState {
	return TextState{
		Body:  t.Body,
		X:     round1(t.Pos.X),
		Y:     round1(t.Pos.Y),
		Color: t.Color,
		Size:  t.Size,
	}
}

// playerLabel names a player number for display; numbers start at 1 on screen.
func playerLabel(number int) string {
	return fmt.Sprintf("PLAYER %d", number+1)
}

func ordinal(n int) string {
	switch {
	case n%100 >= 11 && n%100 <= 13:
		return fmt.Sprintf("%dth", n)
	case n%10 == 1:
		return fmt.Sprintf("%dst", n)
	case n%10 == 2:
		return fmt.Sprintf("%dnd", n)
	case n%10 == 3:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}

// readyLabel floats above a ship that has confirmed it is ready.
func readyLabel(s *Ship) Text {
	return Text{
		Body:  "READY",
		Pos:   s.Pos.Add(NewVector(0, -labelOffset)),
		Color: s.Color,
		Size:  TextSizeSmall,
	}
}

// lobbyTexts are the labels only the owner of s sees while the room waits.
func lobbyTexts(s *Ship) []Text {
	texts := []Text{
		{
			Body:  "YOU ARE " + playerLabel(s.Number),
			Pos:   NewVector(ArenaWidth/2, 40),
			Color: s.Color,
			Size:  TextSizeLarge,
		},
		{
			Body:  "YOU",
			Pos:   s.Pos.Add(NewVector(0, labelOffset)),
			Color: s.Color,
			Size:  TextSizeSmall,
		},
	}
	if !s.Ready {
		texts = append(texts, NewText("PRESS SPACE WHEN READY", ArenaWidth/2, ArenaHeight-40, TextSizeSmall))
	}
	return texts
}

// finishTexts renders the final standings, winner first.
func finishTexts(order []int) []Text {
	texts := []Text{NewText("GAME OVER", ArenaWidth/2, 200, TextSizeLarge)}
	for i, number := range order {
		texts = append(texts, Text{
			Body:  fmt.Sprintf("%s  %s", ordinal(i+1), playerLabel(number)),
			Pos:   NewVector(ArenaWidth/2, 260+float64(i)*36),
			Color: ShipColor(number),
			Size:  TextSizeSmall,
		})
	}
	return texts
}
