package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gentam/norflash/flashinfo"
)

func newFlashInfoCmd() *cobra.Command {
	var offFlag string
	cmd := &cobra.Command{
		Use:   "flash-info",
		Short: "Show or update the firmware update record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := parseUint32(offFlag)
			if err != nil {
				return err
			}
			s, err := openFlash()
			if err != nil {
				return err
			}
			defer s.Close()

			info, err := flashinfo.Load(s.flash, off)
			if err != nil {
				return err
			}
			printInfo(info)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&offFlag, "offset", fmt.Sprintf("%#x", flashinfo.DefaultOffset), "record offset in the security area")

	var (
		isNew     uint8
		chkBackup uint8
		chkNew    uint8
		lenBackup uint32
		lenNew    uint32
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change fields of the record",
		Long: `Change fields of the record. Fields not given keep their stored value.
Neighbouring data in the security sector is preserved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			off, err := parseUint32(offFlag)
			if err != nil {
				return err
			}
			s, err := openFlash()
			if err != nil {
				return err
			}
			defer s.Close()

			info, err := flashinfo.Load(s.flash, off)
			if err != nil {
				return err
			}
			fl := cmd.Flags()
			if fl.Changed("new") {
				info.IsNewFlash = isNew
			}
			if fl.Changed("chk-backup") {
				info.ChkBackup = chkBackup
			}
			if fl.Changed("chk-new") {
				info.ChkNew = chkNew
			}
			if fl.Changed("len-backup") {
				info.LenBackup = lenBackup
			}
			if fl.Changed("len-new") {
				info.LenNew = lenNew
			}
			if err := flashinfo.Store(s.flash, off, info); err != nil {
				return err
			}
			printInfo(info)
			return nil
		},
	}
	fl := setCmd.Flags()
	fl.Uint8Var(&isNew, "new", 0, "new image pending flag")
	fl.Uint8Var(&chkBackup, "chk-backup", 0, "backup image checksum")
	fl.Uint8Var(&chkNew, "chk-new", 0, "new image checksum")
	fl.Uint32Var(&lenBackup, "len-backup", 0, "backup image length")
	fl.Uint32Var(&lenNew, "len-new", 0, "new image length")

	cmd.AddCommand(setCmd)
	return cmd
}

func printInfo(info flashinfo.Info) {
	if info.Erased() {
		fmt.Println("(erased)")
		return
	}
	fmt.Printf("IsNewFlash:      %d\n", info.IsNewFlash)
	fmt.Printf("Backup:          %d bytes, checksum 0x%02X\n", info.LenBackup, info.ChkBackup)
	fmt.Printf("New:             %d bytes, checksum 0x%02X\n", info.LenNew, info.ChkNew)
}
