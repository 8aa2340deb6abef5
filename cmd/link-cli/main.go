// Copyright 2026 DeviceLink, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-logr/stdr"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	linksdk "github.com/devicelink/link-sdk-go"
)

func main() {
	app := &cli.App{
		Name:    "link-cli",
		Usage:   "exercise the device link signaling plane",
		Version: linksdk.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "master-url", Usage: "node activation base url", Required: true},
			&cli.StringFlag{Name: "slave-url", Usage: "messaging account base url"},
			&cli.StringFlag{Name: "connect-url", Usage: "device connect endpoint url"},
			&cli.StringFlag{Name: "auth-key", EnvVars: []string{"LINK_AUTH_KEY"}},
			&cli.StringFlag{Name: "auth-secret", EnvVars: []string{"LINK_AUTH_SECRET"}},
			&cli.StringFlag{Name: "app-id", Required: true},
			&cli.StringFlag{Name: "user-id", Required: true},
			&cli.BoolFlag{Name: "verbose"},
		},
		Commands: []*cli.Command{
			{
				Name:   "activate",
				Usage:  "activate the local node and print its identity",
				Action: runActivate,
			},
			{
				Name:  "connect",
				Usage: "request a call to a device and print the channel grant",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "device-id", Required: true},
					&cli.StringFlag{Name: "attach-msg"},
					&cli.DurationFlag{Name: "timeout", Value: 15 * time.Second},
				},
				Action: runConnect,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLink(c *cli.Context) *linksdk.PersistentLink {
	if c.Bool("verbose") {
		stdr.SetVerbosity(1)
	}
	linksdk.SetLogger(stdr.New(log.New(os.Stderr, "", log.LstdFlags)))

	return linksdk.NewPersistentLink(linksdk.LinkInitParam{
		AppID:            c.String("app-id"),
		MasterServerURL:  c.String("master-url"),
		SlaveServerURL:   c.String("slave-url"),
		ConnectDeviceURL: c.String("connect-url"),
		BasicAuthKey:     c.String("auth-key"),
		BasicAuthSecret:  c.String("auth-secret"),
	})
}

func prepare(c *cli.Context, link *linksdk.PersistentLink) error {
	if errCode := link.Initialize(); errCode != linksdk.XOK {
		return fmt.Errorf("initialize failed: %s", errCode)
	}
	prepared := make(chan linksdk.ErrCode, 1)
	errCode := link.Prepare(linksdk.PrepareParam{
		AppID:  c.String("app-id"),
		UserID: c.String("user-id"),
	}, func(param linksdk.PrepareParam, errCode linksdk.ErrCode) {
		prepared <- errCode
	})
	if errCode != linksdk.XOK {
		return fmt.Errorf("prepare rejected: %s", errCode)
	}
	if errCode = <-prepared; errCode != linksdk.XOK {
		return fmt.Errorf("prepare failed: %s", errCode)
	}
	return nil
}

func runActivate(c *cli.Context) error {
	link := newLink(c)
	defer link.Release()
	if err := prepare(c, link); err != nil {
		return err
	}

	nodeID, region, _, _ := link.LocalNode()
	rtmServer, rtmUser := link.RtmAccessPoint()
	fmt.Printf("node id:     %s\n", nodeID)
	fmt.Printf("node region: %s\n", region)
	fmt.Printf("rtm server:  %s\n", rtmServer)
	fmt.Printf("rtm user:    %s\n", rtmUser)
	return nil
}

func runConnect(c *cli.Context) error {
	link := newLink(c)
	defer link.Release()
	if err := prepare(c, link); err != nil {
		return err
	}

	type grant struct {
		errCode  linksdk.ErrCode
		chnlName string
		localUID uint32
		rtcToken string
		rtmToken string
	}
	granted := make(chan grant, 1)
	res := link.DevReqConnect(c.String("device-id"), c.String("attach-msg"),
		func(errCode linksdk.ErrCode, connectID uuid.UUID, deviceID string,
			localRtcUID uint32, chnlName, rtcToken, rtmToken string) {
			granted <- grant{errCode, chnlName, localRtcUID, rtcToken, rtmToken}
		})
	if res.ErrCode != linksdk.XOK {
		return fmt.Errorf("connect rejected: %s", res.ErrCode)
	}
	defer link.DevReqDisconnect(res.ConnectID)

	select {
	case g := <-granted:
		if g.errCode != linksdk.XOK {
			return fmt.Errorf("connect failed: %s", g.errCode)
		}
		fmt.Printf("channel:   %s\n", g.chnlName)
		fmt.Printf("local uid: %d\n", g.localUID)
		fmt.Printf("rtc token: %s\n", g.rtcToken)
		fmt.Printf("rtm token: %s\n", g.rtmToken)
	case <-time.After(c.Duration("timeout")):
		return fmt.Errorf("connect timed out")
	}
	return nil
}
