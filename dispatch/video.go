package dispatch

import "microbios/shared"

// video sub-command args layout, per bhyve_display_cmd: vidcmd(u32)@0,
// then a union over display_page(u32)/vidmode.mode(u32)/write_char
// {page,row,col,cell}(u32 x4)/palette{index,r,g,b}(u32 x4), all at @4.
const (
	vidArgDisplayPage = 4
	vidArgMode        = 4
	vidArgWCPage      = 4
	vidArgWCRow       = 8
	vidArgWCCol       = 12
	vidArgWCCell      = 16
	vidArgPalIndex    = 4
	vidArgPalR        = 8
	vidArgPalG        = 12
	vidArgPalB        = 16
)

// cmdVideo implements the VIDEO command's sub-commands: mode switch,
// display page, direct text-cell write, and palette load. Mirrors the
// BCMD_VIDEO case of microbios_cmd_handler, generalized from its
// mode/page-only original to cover the write-char and palette paths
// this core's INT 10h surface needs (spec §4.8).
func (d *Dispatcher) cmdVideo() error {
	vidcmd, err := d.Cmd.ArgsU32(0)
	if err != nil {
		return err
	}

	switch vidcmd {
	case shared.VidCmdMode:
		mode, err := d.Cmd.ArgsU32(vidArgMode)
		if err != nil {
			return err
		}
		if serr := d.VGA.SwitchMode(uint8(mode)); serr != nil {
			return d.Cmd.SetResults(1)
		}
		return d.Cmd.SetResults(0)

	case shared.VidCmdDisplayPage:
		page, err := d.Cmd.ArgsU32(vidArgDisplayPage)
		if err != nil {
			return err
		}
		d.VGA.SetDisplayPage(int(page))
		return d.BDA.SetDispPage(uint8(page))

	case shared.VidCmdWriteChar:
		page, err := d.Cmd.ArgsU32(vidArgWCPage)
		if err != nil {
			return err
		}
		row, err := d.Cmd.ArgsU32(vidArgWCRow)
		if err != nil {
			return err
		}
		col, err := d.Cmd.ArgsU32(vidArgWCCol)
		if err != nil {
			return err
		}
		cell, err := d.Cmd.ArgsU32(vidArgWCCell)
		if err != nil {
			return err
		}
		d.VGA.WriteTextChar(int(page), int(row), int(col), uint16(cell))
		return nil

	case shared.VidCmdSetPalette:
		idx, err := d.Cmd.ArgsU32(vidArgPalIndex)
		if err != nil {
			return err
		}
		r, err := d.Cmd.ArgsU32(vidArgPalR)
		if err != nil {
			return err
		}
		g, err := d.Cmd.ArgsU32(vidArgPalG)
		if err != nil {
			return err
		}
		b, err := d.Cmd.ArgsU32(vidArgPalB)
		if err != nil {
			return err
		}
		d.VGA.DAC.SetWriteIndex(uint8(idx))
		d.VGA.DAC.WriteData(uint8(r))
		d.VGA.DAC.WriteData(uint8(g))
		d.VGA.DAC.WriteData(uint8(b))
		return nil

	case shared.VidCmdVESA:
		// No VESA linear framebuffer support (Non-goal): acknowledge
		// the mode-set request without changing any state.
		return d.Cmd.SetResults(0)

	default:
		return d.Cmd.SetResults(1)
	}
}
