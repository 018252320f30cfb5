package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	redis "github.com/kvgo/respipe"
)

var rootCmd = &cobra.Command{
	Use:           "respipe-cli",
	Short:         "A small driver for the respipe Redis client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("addr", "127.0.0.1:6379", "server address (host:port or a Unix socket path)")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Second, "connect timeout")
	rootCmd.PersistentFlags().String("password", "", "AUTH password")
	rootCmd.PersistentFlags().Int64("db", 0, "SELECT database index")

	viper.SetEnvPrefix("RESPIPE")
	viper.AutomaticEnv()
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(pingCmd, getCmd, setCmd, subscribeCmd)
}

func clientOptions() redis.Options {
	return redis.Options{
		Addr:           viper.GetString("addr"),
		ConnectTimeout: viper.GetDuration("timeout"),
		Password:       viper.GetString("password"),
		DB:             viper.GetInt64("db"),
	}
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Ping the server and print the reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := redis.NewClient(clientOptions())
		if err := c.Connect(); err != nil {
			return err
		}
		defer c.Disconnect()

		f, err := c.SendFuture("PING")
		if err != nil {
			return err
		}
		if err := c.Commit(); err != nil {
			return err
		}
		fmt.Println(f.Get().String())
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "GET a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := redis.NewClient(clientOptions())
		if err := c.Connect(); err != nil {
			return err
		}
		defer c.Disconnect()

		f, err := c.SendFuture("GET", args[0])
		if err != nil {
			return err
		}
		if err := c.Commit(); err != nil {
			return err
		}
		r := f.Get()
		if r.IsNull() {
			fmt.Println("(nil)")
			return nil
		}
		b, err := r.AsBytes()
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "SET a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := redis.NewClient(clientOptions())
		if err := c.Connect(); err != nil {
			return err
		}
		defer c.Disconnect()

		f, err := c.SendFuture("SET", args[0], args[1])
		if err != nil {
			return err
		}
		if err := c.Commit(); err != nil {
			return err
		}
		fmt.Println(f.Get().String())
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <channel>",
	Short: "Subscribe to a channel and print messages until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := redis.NewSubscriber(clientOptions())
		if err := s.Connect(); err != nil {
			return err
		}
		defer s.Disconnect()

		done := make(chan struct{})
		s.OnDisconnect(func(err error) { close(done) })

		if err := s.Subscribe(func(channel string, payload []byte) {
			fmt.Printf("%s: %s\n", channel, payload)
		}, args[0]); err != nil {
			return err
		}

		<-done
		return nil
	},
}
