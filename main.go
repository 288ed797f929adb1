package main

import "github.com/surge-downloader/ytdlp-remote/cmd"

func main() {
	cmd.Execute()
}
