package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value] [expireIn]",
		Short: "Sets the value for a key, optionally expiring after expireIn seconds",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if len(args) == 2 {
				if err := rpcStore.Set(key, []byte(value)); err != nil {
					return err
				}
				fmt.Println("set successfully")
				return nil
			}

			expireIn, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("expireIn must be a number: %w", err)
			}
			if err := rpcStore.SetE(key, []byte(value), expireIn); err != nil {
				return err
			}
			fmt.Println("setE successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if resp, ok, err := rpcStore.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			}
			return nil
		},
	}
	ttlCmd = &cobra.Command{
		Use:   "ttl [key]",
		Short: "Prints the remaining lifetime of a key in seconds",
		Long:  "Prints the remaining lifetime of a key in seconds, -1 for keys without expiration and -2 for missing keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ttl, err := rpcStore.TTL(key)
			if err != nil {
				return err
			}
			switch ttl {
			case db.TTLMissing:
				fmt.Printf("key=%s, found=false\n", key)
			case db.TTLNoExpiry:
				fmt.Printf("key=%s, ttl=none\n", key)
			default:
				fmt.Printf("key=%s, ttl=%ds\n", key, ttl)
			}
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [prefix]",
		Short: "Lists all keys with the given prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := rpcStore.Keys(prefix)
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := rpcStore.Delete(key); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the database of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcStore.GetDBInfo()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
)
