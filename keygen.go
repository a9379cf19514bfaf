package main

import (
	"fmt"

	"devconnector/auth"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/urfave/cli/v2"
)

func keygenCmd() *cli.Command {
	var out string
	var bits int
	return &cli.Command{
		Name:  "keygen",
		Usage: "Write an RSA key pair for signing tokens and print a VAPID key pair",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Usage:       "Directory for private.pem and public.pem",
				Value:       ".",
				Destination: &out,
			},
			&cli.IntFlag{
				Name:        "bits",
				Value:       auth.KeyBits,
				Destination: &bits,
			},
		},
		Action: func(appCtx *cli.Context) error {
			privatePath, publicPath, err := auth.WriteKeyPair(out, bits)
			if err != nil {
				return err
			}
			vapidPrivate, vapidPublic, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generate VAPID keys: %w", err)
			}
			w := appCtx.App.Writer
			fmt.Fprintf(w, "JWT_PRIVATE_KEY_FILE=%s\n", privatePath)
			fmt.Fprintf(w, "JWT_PUBLIC_KEY_FILE=%s\n", publicPath)
			fmt.Fprintf(w, "VAPID_PUBLIC_KEY=%s\n", vapidPublic)
			fmt.Fprintf(w, "VAPID_PRIVATE_KEY=%s\n", vapidPrivate)
			return nil
		},
	}
}
