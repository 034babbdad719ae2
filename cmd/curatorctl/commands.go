package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/danmuck/curator_link/src/layout"
	"github.com/danmuck/curator_link/src/service"
	logs "github.com/danmuck/smplog"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's collection and layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			configFile, _ := svc.ConfigPath()
			collection, _ := svc.CollectionPath()
			thumbs, err := svc.ThumbnailPaths(0, 0)
			if err != nil {
				return err
			}

			logs.Titlef("\ncurator @ %s\n", cfg.Address)
			logs.DataKV("Config", configFile)
			logs.DataKV("Collection", collection)
			logs.DataKV("Thumbnail stores", strconv.Itoa(len(thumbs)))
			printHoppers(svc.Hoppers())
			return nil
		})
	},
}

func printHoppers(hoppers []layout.Hopper) {
	logs.Titlef("\nHoppers (%d):\n", len(hoppers))
	if len(hoppers) == 0 {
		logs.StatusWarn("No hoppers configured.")
		return
	}
	for i, h := range hoppers {
		logs.MenuItem(i, logs.PadRight(16, h.Name)+"  "+h.Path, false)
	}
}

var similarCmd = &cobra.Command{
	Use:   "similar <directory> <file>",
	Short: "List stored images similar to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			matches, err := svc.RequestPhashQuery(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			within := service.FilterSimilar(matches, cfg.MaxDiff)

			logs.Titlef("\nSimilar to %s/%s (%d of %d within %d):\n", args[0], args[1], len(within), len(matches), cfg.MaxDiff)
			if len(within) == 0 {
				logs.StatusWarn("No similar images.")
				return nil
			}
			for i, m := range within {
				target := svc.GetPath(service.ByOrder, strconv.FormatUint(uint64(m.Group), 10), strconv.FormatUint(uint64(m.Index), 10))
				logs.MenuItem(i, fmt.Sprintf("%d/%d  diff %2d  %s", m.Group, m.Index, m.Diff, target), false)
			}
			return nil
		})
	},
}

var thumbsCmd = &cobra.Command{
	Use:   "thumbs <group> <index>",
	Short: "Print the thumbnail URIs of a stored image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, err := parseUint32("group", args[0])
		if err != nil {
			return err
		}
		index, err := parseUint32("index", args[1])
		if err != nil {
			return err
		}
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			paths, err := svc.ThumbnailPaths(group, index)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				logs.StatusWarn("No thumbnail stores configured.")
				return nil
			}
			for _, p := range paths {
				logs.Println(p)
			}
			return nil
		})
	},
}

var pathCmd = &cobra.Command{
	Use:   "path <by-order|by-id> <part>...",
	Short: "Resolve a stored image to its collection path",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := service.PathKind(args[0])
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			p := svc.GetPath(kind, args[1:]...)
			if p == "" {
				return fmt.Errorf("cannot resolve %s %v", kind, args[1:])
			}
			logs.Println(p)
			return nil
		})
	},
}

var showConflicts bool

var haltedCmd = &cobra.Command{
	Use:   "halted [hopper]...",
	Short: "List imports halted in hoppers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *service.Service) error {
			names := args
			if len(names) == 0 {
				for _, h := range svc.Hoppers() {
					names = append(names, h.Name)
				}
			}
			for _, name := range names {
				if err := printHalted(ctx, svc, name); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func printHalted(ctx context.Context, svc *service.Service, hopper string) error {
	halted, err := svc.HaltedImports(ctx, hopper)
	if err != nil {
		return err
	}
	logs.Titlef("\nHalted in %s (%d):\n", hopper, len(halted))
	for i, file := range halted {
		logs.MenuItem(i, file, false)
		if !showConflicts {
			continue
		}
		conflicts, err := svc.Conflicts(ctx, hopper, file)
		if err != nil {
			logs.Warnf("%v", err)
			continue
		}
		for _, c := range conflicts {
			logs.Dataf("    %s %s -> %s\n", c.Kind, c.File, svc.ResolveCompareTarget(c.Other))
		}
	}
	return nil
}

func init() {
	haltedCmd.Flags().BoolVar(&showConflicts, "conflicts", false, "show each halted file's conflicts")
}

func parseUint32(name, raw string) (uint32, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return uint32(v), nil
}
