package main

import "github.com/Luoseyznl/RealTimeAVPlayer/cmd/avplayer"

func main() {
	avplayer.Execute()
}
