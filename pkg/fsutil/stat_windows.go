//go:build windows

package fsutil

import (
	"time"

	"golang.org/x/sys/windows"
)

const linkCounts = true

func statFile(path string) (FileInfo, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return FileInfo{}, err
	}
	h, err := windows.CreateFile(p, 0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return FileInfo{}, err
	}
	defer windows.CloseHandle(h)

	var d windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &d); err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		ID: FileID{
			Dev: uint64(d.VolumeSerialNumber),
			Ino: uint64(d.FileIndexHigh)<<32 | uint64(d.FileIndexLow),
		},
		Nlink:   uint64(d.NumberOfLinks),
		ModTime: time.Unix(0, d.LastWriteTime.Nanoseconds()),
	}, nil
}
