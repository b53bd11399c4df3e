package main

import (
	"flag"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/asche"
	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/closer"

	"voxelstream/internal/config"
	"voxelstream/internal/graphics/blocks"
	"voxelstream/internal/graphics/vkdevice"
	"voxelstream/internal/profiling"
	"voxelstream/internal/world"
)

func init() {
	runtime.LockOSThread()
}

// application satisfies the asche bootstrap. Presentation is handled by our
// own swapchain, so the mode excludes asche's present path.
type application struct {
	*asche.BaseVulkanApp
	window *glfw.Window
}

func (a *application) VulkanAppName() string { return "voxelstream" }

func (a *application) VulkanMode() asche.VulkanMode {
	return asche.VulkanCompute | asche.VulkanGraphics
}

func (a *application) VulkanInstanceExtensions() []string {
	return terminated(a.window.GetRequiredInstanceExtensions())
}

func (a *application) VulkanDeviceExtensions() []string {
	return []string{"VK_KHR_swapchain\x00"}
}

// terminated null-terminates strings for the C side.
func terminated(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		if strings.HasSuffix(s, "\x00") {
			out[i] = s
		} else {
			out[i] = s + "\x00"
		}
	}
	return out
}

func main() {
	configPath := flag.String("config", "voxelstream.yaml", "path to config file")
	flag.Parse()
	if err := config.Load(*configPath); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := glfw.Init(); err != nil {
		log.Fatalf("glfw init: %v", err)
	}
	closer.Bind(glfw.Terminate)

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "voxelstream", nil, nil)
	if err != nil {
		closer.Fatalln("create window:", err)
	}
	window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		closer.Fatalln("vulkan init:", err)
	}

	app := &application{BaseVulkanApp: new(asche.BaseVulkanApp), window: window}
	platform, err := asche.NewPlatform(app)
	if err != nil {
		closer.Fatalln("vulkan platform:", err)
	}
	closer.Bind(platform.Destroy)

	surfPtr, err := window.CreateWindowSurface(platform.Instance(), nil)
	if err != nil {
		closer.Fatalln("create surface:", err)
	}
	surface := vk.SurfaceFromPointer(surfPtr)

	ctx, err := vkdevice.NewContext(
		platform.PhysicalDevice(), platform.Device(),
		platform.GraphicsQueue(), platform.GraphicsQueueFamilyIndex(),
		config.GetFramesInFlight())
	if err != nil {
		closer.Fatalln("device context:", err)
	}
	closer.Bind(ctx.Destroy)

	renderer, err := vkdevice.NewRenderer(ctx, surface, 1280, 720, "assets/shaders", "assets/textures")
	if err != nil {
		closer.Fatalln("renderer:", err)
	}
	closer.Bind(renderer.Destroy)

	gameWorld := world.New(config.GetSeed(), config.GetRenderDistance())
	closer.Bind(gameWorld.Close)

	scene, err := blocks.NewScene(ctx, gameWorld, blocks.Config{
		VertexHeapBytes:   config.GetVertexHeapBytes(),
		IndexHeapBytes:    config.GetIndexHeapBytes(),
		StagingBytes:      config.GetStagingBytes(),
		UploadsPerFrame:   config.GetUploadsPerFrame(),
		MeshWorkers:       config.GetMeshWorkers(),
		MeshQueueSize:     1024,
		ResultsBufferSize: 1024,
	})
	if err != nil {
		closer.Fatalln("scene:", err)
	}
	closer.Bind(scene.Shutdown)

	spawnY := float32(gameWorld.SurfaceHeightAt(0, 0) + 12)
	cam := newCamera(mgl32.Vec3{0, spawnY, 0})
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		cam.handleMouse(xpos, ypos)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	runGameLoop(window, renderer, scene, gameWorld, cam)
	closer.Close()
}

func runGameLoop(window *glfw.Window, renderer *vkdevice.Renderer, scene *blocks.Scene, w *world.World, cam *camera) {
	last := time.Now()
	var lastLog time.Time
	frames := 0
	fps := 0
	lastFPSCheck := time.Now()

	for !window.ShouldClose() {
		profiling.ResetFrame()
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		if dt > 0.25 {
			dt = 0.25
		}

		func() { defer profiling.Track("glfw.PollEvents")(); glfw.PollEvents() }()
		cam.update(window, dt)

		func() {
			defer profiling.Track("world.Update")()
			w.UpdateFromPosition(cam.Position.X(), cam.Position.Z())
		}()
		func() { defer profiling.Track("scene.Update")(); scene.Update() }()

		width, height := renderer.Extent()
		viewProj := cam.viewProj(width, height)

		cb, outdated, err := renderer.BeginFrame(viewProj)
		if err != nil {
			log.Printf("begin frame: %v", err)
			return
		}
		if outdated {
			continue
		}
		func() {
			defer profiling.Track("scene.Render")()
			if err := scene.Render(vkdevice.WrapCommandBuffer(cb), viewProj); err != nil {
				log.Printf("render: %v", err)
			}
		}()
		if _, err := renderer.EndFrame(); err != nil {
			log.Printf("end frame: %v", err)
			return
		}

		frames++
		if time.Since(lastFPSCheck) >= time.Second {
			fps = frames
			frames = 0
			lastFPSCheck = time.Now()
		}

		if frameDur := time.Since(now); frameDur > 33*time.Millisecond {
			log.Printf("slow frame: %.2fms | %s",
				float64(frameDur.Nanoseconds())/1e6, profiling.TopN(4))
		}

		if now.Sub(lastLog) > 5*time.Second {
			lastLog = now
			log.Printf("fps=%d columns=%d draws=%d uploads=%d meshing=%d scene=%.1fms | %s",
				fps, w.ColumnCount(),
				profiling.Counter("scene.draw.columns"),
				profiling.Counter("scene.upload.columns"),
				scene.ActiveMeshTasks(),
				float64(profiling.SumWithPrefix("scene.").Nanoseconds())/1e6,
				profiling.TopN(4))
		}
	}
}
