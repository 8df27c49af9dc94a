package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"tanisma/internal/logging"
	"tanisma/internal/meet"
)

// The client is a small line-oriented console exercising the full flow:
// account, profile photo, meeting search and chat.
func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	dataDir := flag.String("data", ".", "directory for the conversation log")
	lat := flag.Float64("lat", 41.0082, "reported latitude")
	lon := flag.Float64("lon", 28.9784, "reported longitude")
	photo := flag.String("photo", "", "path of the profile photo to capture")
	flag.Parse()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	api, err := meet.NewAPI(*server)
	if err != nil {
		fmt.Fprintln(os.Stderr, "client setup failed:", err)
		os.Exit(1)
	}
	log, err := meet.OpenLog(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open conversation log:", err)
		os.Exit(1)
	}
	session := meet.NewSession(api, meet.StaticGeolocator{Latitude: *lat, Longitude: *lon}, log, logger)

	ctx := context.Background()
	fmt.Println("tanisma client — komutlar: register, login, me, meet, cancel, chats, open, send, close, logout, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "register":
			args := strings.Fields(rest)
			if len(args) < 4 {
				fmt.Println("kullanım: register <telefon> <şifre> <ad> <soyad>")
				continue
			}
			photoDataURL, err := capturePhoto(*photo)
			if err != nil {
				fmt.Println("fotoğraf alınamadı:", err)
				continue
			}
			user, err := api.Register(ctx, args[0], args[1], args[2], args[3], photoDataURL)
			if err != nil {
				fmt.Println("kayıt başarısız:", err)
				continue
			}
			fmt.Printf("hoş geldin %s %s\n", user.FirstName, user.LastName)
		case "login":
			args := strings.Fields(rest)
			if len(args) < 2 {
				fmt.Println("kullanım: login <telefon> <şifre>")
				continue
			}
			user, err := api.Login(ctx, args[0], args[1])
			if err != nil {
				fmt.Println("giriş başarısız:", err)
				continue
			}
			fmt.Printf("hoş geldin %s %s\n", user.FirstName, user.LastName)
		case "me":
			user, err := api.Me(ctx)
			if err != nil {
				fmt.Println("istek başarısız:", err)
				continue
			}
			if user == nil {
				fmt.Println("oturum yok")
				continue
			}
			fmt.Printf("%s %s (%s)\n", user.FirstName, user.LastName, user.Phone)
		case "meet":
			if err := session.StartMeeting(ctx); err != nil {
				fmt.Println("arama başlatılamadı:", err)
				continue
			}
			watchSearch(session)
		case "cancel":
			session.CancelSearch()
			fmt.Println("arama iptal edildi")
		case "chats":
			for _, conv := range log.Snapshot() {
				fmt.Printf("%s  %s  (%d mesaj)\n", conv.ID, conv.PersonName, len(conv.Messages))
			}
		case "open":
			id := strings.TrimSpace(rest)
			if err := session.OpenChat(id); err != nil {
				fmt.Println(err)
				continue
			}
			conv, _ := log.Get(id)
			for _, msg := range conv.Messages {
				printMessage(conv.PersonName, msg)
			}
		case "send":
			id := session.ActiveConversationID()
			if id == "" {
				fmt.Println("önce bir sohbet aç")
				continue
			}
			if !session.Send(ctx, id, rest) {
				fmt.Println("mesaj gönderilemedi, yanıt bekleniyor")
				continue
			}
			session.WaitReplies()
			conv, _ := log.Get(id)
			if n := len(conv.Messages); n > 0 {
				printMessage(conv.PersonName, conv.Messages[n-1])
			}
		case "close":
			session.CloseChat()
		case "logout":
			if err := api.Logout(ctx); err != nil {
				fmt.Println("çıkış başarısız:", err)
				continue
			}
			fmt.Println("çıkış yapıldı")
		case "quit", "exit":
			return
		default:
			fmt.Println("bilinmeyen komut:", cmd)
		}
	}
}

func capturePhoto(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("fotoğraf dosyası verilmedi (-photo)")
	}
	controller := meet.NewCaptureController(meet.FileCamera{Path: path})
	if err := controller.Start(); err != nil {
		return "", err
	}
	return controller.Capture()
}

// watchSearch blocks until the countdown produces a chat or is cancelled.
func watchSearch(session *meet.Session) {
	for {
		phase := session.Phase()
		if phase == meet.PhaseChat {
			id := session.ActiveConversationID()
			fmt.Println("biri bulundu! sohbet:", id)
			return
		}
		if phase != meet.PhaseSearching {
			return
		}
		left, total := session.Progress()
		fmt.Printf("\raranıyor... %d/%d sn ", total-left, total)
		time.Sleep(250 * time.Millisecond)
	}
}

func printMessage(personName string, msg meet.ChatMessage) {
	who := "ben"
	if msg.Role == "them" {
		who = personName
	}
	fmt.Printf("[%s] %s\n", who, msg.Text)
}
