// qmlscene runs a QML scene in the Go process, connected to a qbackend
// Connection.
//
// qmlscene combines https://github.com/special/qgoscene with qbackend. qgoscene
// is a very simple API to run QML in a Go process; it links to Qt directly.
// The scene and the connection talk over a pair of pipes, the same way an
// external frontend would over a socket.
//
// In simple cases, an application can execute with:
//
//     c, err := qmlscene.Connection()
//     c.RootObject = &Root{...}
//     os.Exit(qmlscene.ExecScene("main.qml"))
package qmlscene

import (
	"errors"
	"fmt"
	"os"

	qbackend "github.com/CrimsonAS/qbind/backend"
	"github.com/special/qgoscene"
)

var (
	ErrSceneLoaded = errors.New("qmlscene: a scene is already loaded")
	ErrNoScene     = errors.New("qmlscene: no scene loaded")
)

var connection *qbackend.Connection
var scene *qgoscene.Scene
var rB, wB, rF, wF *os.File

// Connection returns the connection of the scene, creating it on the first
// call.
func Connection() (*qbackend.Connection, error) {
	if connection != nil {
		return connection, nil
	}

	var err error
	if rB, wB, err = os.Pipe(); err != nil {
		return nil, fmt.Errorf("qmlscene: backend pipe: %w", err)
	}
	if rF, wF, err = os.Pipe(); err != nil {
		rB.Close()
		wB.Close()
		return nil, fmt.Errorf("qmlscene: frontend pipe: %w", err)
	}
	connection = qbackend.NewConnectionSplit(rF, wB)
	return connection, nil
}

func sceneArgs() []string {
	return append(os.Args, "-qbackend", fmt.Sprintf("fd:%d,%d", rB.Fd(), wF.Fd()))
}

func Scene() *qgoscene.Scene {
	return scene
}

func LoadScene(qmlRootFile string) (*qgoscene.Scene, error) {
	if scene != nil {
		return nil, ErrSceneLoaded
	}
	if _, err := Connection(); err != nil {
		return nil, err
	}
	scene = qgoscene.NewScene(qmlRootFile, sceneArgs())
	return scene, nil
}

func LoadSceneData(qmlString string) (*qgoscene.Scene, error) {
	if scene != nil {
		return nil, ErrSceneLoaded
	}
	if _, err := Connection(); err != nil {
		return nil, err
	}
	scene = qgoscene.NewSceneData(qmlString, sceneArgs())
	return scene, nil
}

// Exec runs the loaded scene until it quits and returns its exit code. The
// connection is run in the background unless it was started already, and
// closed when the scene ends.
func Exec() (int, error) {
	if scene == nil {
		return 1, ErrNoScene
	}
	if !connection.Started() {
		go connection.Run()
	}
	code := scene.Exec()
	connection.Close()
	return code, nil
}

// ExecScene loads and runs qmlRootFile, returning an exit code for os.Exit.
func ExecScene(qmlRootFile string) int {
	if _, err := LoadScene(qmlRootFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	code, err := Exec()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return code
}

func ExecSceneData(qmlString string) int {
	if _, err := LoadSceneData(qmlString); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	code, err := Exec()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return code
}
